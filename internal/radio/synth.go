package radio

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/cmplx"
	"math/rand/v2"

	"github.com/tphakala/go-lte-sync/internal/detect"
	"github.com/tphakala/go-lte-sync/internal/iq"
	"github.com/tphakala/go-lte-sync/internal/lte"
)

// SynthConfig describes a synthetic downlink: the sync signals of one cell
// in Gaussian noise.
type SynthConfig struct {
	Bandwidth lte.Bandwidth
	Cell      lte.CellID
	Channels  int

	// Gain is the amplitude of the sync symbols; Noise the noise standard
	// deviation per sample, in sc16 units.
	Gain  float64
	Noise float64

	// Offset is the carrier offset in Hz. Delay shifts the frame start
	// that many samples into the stream.
	Offset float64
	Delay  int

	// Subframes ends the stream after that many subframes. Zero is endless.
	Subframes int

	PacketLen int
	Seed      uint64
}

// SynthStreamer generates a SynthConfig downlink.
type SynthStreamer struct {
	cfg    SynthConfig
	synth  *detect.Synthesizer
	rng    *rand.Rand
	subLen int
	rate   float64

	sf      int // subframes generated
	frame   iq.Vector
	pending [][]int16
	ts      int64 // timestamp of pending[0]
	samples [][]int16
}

// NewSynthStreamer validates cfg and returns its streamer.
func NewSynthStreamer(cfg SynthConfig) (*SynthStreamer, error) {
	if !cfg.Bandwidth.Valid() || cfg.Channels < 1 || cfg.PacketLen < 1 || cfg.Delay < 0 || cfg.Subframes < 0 {
		return nil, fmt.Errorf("%w: synthetic source %+v", ErrConfig, cfg)
	}
	synth, err := detect.NewSynthesizer(cfg.Bandwidth.FFTSize())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if synth.SubframeLen() != cfg.Bandwidth.SubframeLen() {
		return nil, fmt.Errorf("%w: grid subframe %d does not match %d", ErrConfig, synth.SubframeLen(), cfg.Bandwidth.SubframeLen())
	}

	s := &SynthStreamer{
		cfg:     cfg,
		synth:   synth,
		rng:     rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x5851f42d4c957f2d)),
		subLen:  cfg.Bandwidth.SubframeLen(),
		rate:    cfg.Bandwidth.SampleRate(),
		frame:   iq.NewVector(cfg.Bandwidth.SubframeLen()),
		pending: make([][]int16, cfg.Channels),
		samples: make([][]int16, cfg.Channels),
	}
	for ch := range s.pending {
		s.pending[ch] = make([]int16, 2*cfg.Delay, 2*(cfg.Delay+cfg.PacketLen+s.subLen))
	}
	s.noise(0, cfg.Delay)
	return s, nil
}

// Channels returns the number of channels.
func (s *SynthStreamer) Channels() int { return s.cfg.Channels }

// Rate returns the native sample rate of the configured bandwidth.
func (s *SynthStreamer) Rate() float64 { return s.rate }

// Recv returns the next PacketLen samples.
func (s *SynthStreamer) Recv(ctx context.Context) (Packet, error) {
	if err := ctx.Err(); err != nil {
		return Packet{}, err
	}

	for len(s.pending[0])/2 < s.cfg.PacketLen {
		if s.cfg.Subframes > 0 && s.sf >= s.cfg.Subframes {
			break
		}
		if err := s.generate(); err != nil {
			return Packet{}, err
		}
	}

	n := min(s.cfg.PacketLen, len(s.pending[0])/2)
	if n == 0 {
		return Packet{}, io.EOF
	}

	for ch := range s.pending {
		s.samples[ch] = append(s.samples[ch][:0], s.pending[ch][:2*n]...)
		s.pending[ch] = append(s.pending[ch][:0], s.pending[ch][2*n:]...)
	}
	pkt := Packet{TS: s.ts, Samples: s.samples}
	s.ts += int64(n)
	return pkt, nil
}

// generate appends one subframe to every channel.
func (s *SynthStreamer) generate() error {
	sf := s.sf % lte.SubframesPerFrame
	first := s.cfg.Delay + s.sf*s.subLen

	s.frame.Zero()
	if sf == lte.PSSSubframe0 || sf == lte.PSSSubframe5 {
		if err := s.synth.Sync(s.frame, s.cfg.Cell, sf, s.cfg.Gain); err != nil {
			return err
		}
	}
	if s.cfg.Offset != 0 {
		w := 2 * math.Pi * s.cfg.Offset / s.rate
		for k := range s.subLen {
			ph := w * float64(first+k)
			s.frame.Set(k, s.frame.At(k)*cmplx.Rect(1, ph))
		}
	}

	for ch := range s.pending {
		off := len(s.pending[ch])
		s.pending[ch] = append(s.pending[ch], make([]int16, 2*s.subLen)...)
		iq.Interleave(s.pending[ch][off:], s.frame, 1)
	}
	s.noise(len(s.pending[0])/2-s.subLen, s.subLen)
	s.sf++
	return nil
}

// noise adds Gaussian noise to n pending samples from index lo.
func (s *SynthStreamer) noise(lo, n int) {
	if s.cfg.Noise == 0 {
		return
	}
	for ch := range s.pending {
		buf := s.pending[ch][2*lo : 2*(lo+n)]
		for k := range buf {
			buf[k] = saturate(float64(buf[k]) + s.rng.NormFloat64()*s.cfg.Noise)
		}
	}
}

// Close is a no-op.
func (s *SynthStreamer) Close() error { return nil }
