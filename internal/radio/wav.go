package radio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVStreamer replays a 16-bit WAV capture as a sample stream. Each pair of
// WAV channels carries the I and Q of one receive channel. Timestamps count
// samples from zero.
type WAVStreamer struct {
	file    *os.File
	decoder *wav.Decoder
	rate    float64
	chans   int

	buf     *audio.IntBuffer
	samples [][]int16
	ts      int64
}

// OpenWAV opens path and streams it in packets of packetLen samples.
func OpenWAV(path string, packetLen int, logger *log.Logger) (*WAVStreamer, error) {
	if packetLen < 1 {
		return nil, fmt.Errorf("%w: packet length %d", ErrConfig, packetLen)
	}
	if logger == nil {
		logger = log.Default()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		_ = f.Close()
		return nil, fmt.Errorf("%w: invalid WAV file: %s", ErrConfig, path)
	}

	format := decoder.Format()
	if decoder.BitDepth != 16 || format.NumChannels < 2 || format.NumChannels%2 != 0 {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s is %d-bit with %d channels, want 16-bit I/Q pairs",
			ErrConfig, path, decoder.BitDepth, format.NumChannels)
	}

	chans := format.NumChannels / 2
	s := &WAVStreamer{
		file:    f,
		decoder: decoder,
		rate:    float64(format.SampleRate),
		chans:   chans,
		buf: &audio.IntBuffer{
			Format:         format,
			Data:           make([]int, packetLen*format.NumChannels),
			SourceBitDepth: 16,
		},
		samples: make([][]int16, chans),
	}
	for ch := range s.samples {
		s.samples[ch] = make([]int16, 2*packetLen)
	}

	logger.Info("replaying capture", "path", path, "channels", chans, "rate", format.SampleRate)
	return s, nil
}

// Channels returns the number of receive channels.
func (s *WAVStreamer) Channels() int { return s.chans }

// Rate returns the capture sample rate.
func (s *WAVStreamer) Rate() float64 { return s.rate }

// Recv returns the next packet, or io.EOF at the end of the capture. A
// short final packet is returned whole.
func (s *WAVStreamer) Recv(ctx context.Context) (Packet, error) {
	if err := ctx.Err(); err != nil {
		return Packet{}, err
	}

	n, err := s.decoder.PCMBuffer(s.buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return Packet{}, fmt.Errorf("decode capture: %w", err)
	}
	width := 2 * s.chans
	frames := n / width
	if frames == 0 {
		return Packet{}, io.EOF
	}

	pkt := Packet{TS: s.ts, Samples: make([][]int16, s.chans)}
	for ch := range s.chans {
		dst := s.samples[ch][:2*frames]
		for k := range frames {
			dst[2*k] = int16(s.buf.Data[k*width+2*ch])
			dst[2*k+1] = int16(s.buf.Data[k*width+2*ch+1])
		}
		pkt.Samples[ch] = dst
	}
	s.ts += int64(frames)
	return pkt, nil
}

// Close closes the capture file.
func (s *WAVStreamer) Close() error { return s.file.Close() }

// WriteWAV writes per-channel interleaved sc16 samples as a 16-bit WAV
// capture that OpenWAV reads back.
func WriteWAV(w io.WriteSeeker, rate int, samples [][]int16) error {
	if len(samples) == 0 {
		return fmt.Errorf("%w: no channels", ErrConfig)
	}
	width := 2 * len(samples)
	frames := len(samples[0]) / 2

	data := make([]int, frames*width)
	for ch, s := range samples {
		for k := range frames {
			data[k*width+2*ch] = int(s[2*k])
			data[k*width+2*ch+1] = int(s[2*k+1])
		}
	}

	enc := wav.NewEncoder(w, rate, 16, width, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: width, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode capture: %w", err)
	}
	return enc.Close()
}
