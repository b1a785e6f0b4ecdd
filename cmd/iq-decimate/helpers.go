package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/charmbracelet/log"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/tphakala/go-lte-sync/internal/engine"
	"github.com/tphakala/go-lte-sync/internal/lte"
	"github.com/tphakala/go-lte-sync/internal/mathutil"
	"github.com/tphakala/go-lte-sync/internal/simdops"
)

const (
	// Frames read per chunk.
	bufferSize = 65536

	bitsPerSample16 = 16
	maxInt16        = 32767.0
	fullScale       = 32768.0
	wavPCMFormat    = 1
	iqPair          = 2
)

type decimateStats struct {
	inputRate     int
	outputRate    int
	channels      int
	p, q          int
	inputSamples  int64
	outputSamples int64
}

// wavInput holds a validated IQ capture.
type wavInput struct {
	file     *os.File
	decoder  *wav.Decoder
	rate     int
	channels int // IQ channels, half the WAV channels
	format   *audio.Format
}

// openWAVInput opens path and checks it is a 16-bit capture of IQ pairs.
func openWAVInput(path string, logger *log.Logger) (*wavInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		_ = f.Close()
		return nil, fmt.Errorf("invalid WAV file: %s", path)
	}

	format := dec.Format()
	if dec.BitDepth != bitsPerSample16 {
		_ = f.Close()
		return nil, fmt.Errorf("unsupported bit depth %d, want 16", dec.BitDepth)
	}
	if format.NumChannels < iqPair || format.NumChannels%iqPair != 0 {
		_ = f.Close()
		return nil, fmt.Errorf("%d WAV channels do not form IQ pairs", format.NumChannels)
	}

	logger.Debug("input format", "rate", format.SampleRate, "wav_channels", format.NumChannels)
	return &wavInput{
		file:     f,
		decoder:  dec,
		rate:     format.SampleRate,
		channels: format.NumChannels / iqPair,
		format:   format,
	}, nil
}

// Close closes the input file.
func (w *wavInput) Close() error { return w.file.Close() }

// wavOutput is a 16-bit WAV writer.
type wavOutput struct {
	file   *os.File
	enc    *wav.Encoder
	format *audio.Format
}

// createWAVOutput creates path for channels IQ channels at rate.
func createWAVOutput(path string, rate, channels int) (*wavOutput, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return &wavOutput{
		file:   f,
		enc:    wav.NewEncoder(f, rate, bitsPerSample16, iqPair*channels, wavPCMFormat),
		format: &audio.Format{NumChannels: iqPair * channels, SampleRate: rate},
	}, nil
}

// WriteSamples writes interleaved frames.
func (w *wavOutput) WriteSamples(data []int) error {
	if len(data) == 0 {
		return nil
	}
	return w.enc.Write(&audio.IntBuffer{Format: w.format, Data: data, SourceBitDepth: bitsPerSample16})
}

// Close finalizes the header and closes the file.
func (w *wavOutput) Close() error {
	if err := w.enc.Close(); err != nil {
		_ = w.file.Close()
		return err
	}
	return w.file.Close()
}

// ratioFor returns P/Q taking rate to the native rate of rbs resource
// blocks.
func ratioFor(rate, rbs int) (p, q int, err error) {
	bw, err := lte.ParseBandwidth(rbs)
	if err != nil {
		return 0, 0, err
	}
	if rate <= 0 {
		return 0, 0, fmt.Errorf("invalid input rate %d", rate)
	}
	p, q = mathutil.ReduceRatio(int(bw.SampleRate()), rate)
	return p, q, nil
}

// decimator resamples interleaved IQ frames, one Rational per channel.
// Input that does not fill a whole block waits for the next push.
type decimator[F simdops.Float] struct {
	res      []*engine.Rational[F]
	ops      *simdops.Ops[F]
	p, q     int
	blockIn  int
	blockOut int

	pendI, pendQ [][]F
	outI, outQ   [][]F
	out          []int
}

func newDecimator[F simdops.Float](channels, p, q, taps int) (*decimator[F], error) {
	p, q = mathutil.ReduceRatio(p, q)

	// Largest block whose output fits one Rotate.
	blocks := max(1, min(bufferSize/q, engine.MaxOutputLen/p))

	d := &decimator[F]{
		res:      make([]*engine.Rational[F], channels),
		ops:      simdops.For[F](),
		p:        p,
		q:        q,
		blockIn:  blocks * q,
		blockOut: blocks * p,
		pendI:    make([][]F, channels),
		pendQ:    make([][]F, channels),
		outI:     make([][]F, channels),
		outQ:     make([][]F, channels),
	}
	for ch := range channels {
		r, err := engine.NewRational[F](p, q, taps, 0, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to create resampler for channel %d: %w", ch, err)
		}
		d.res[ch] = r
		d.outI[ch] = make([]F, d.blockOut)
		d.outQ[ch] = make([]F, d.blockOut)
	}
	return d, nil
}

// push deinterleaves frames of I/Q pairs into the pending buffers,
// normalized to full scale.
func (d *decimator[F]) push(data []int) {
	chans := len(d.res)
	frames := len(data) / (iqPair * chans)
	for ch := range chans {
		lo := len(d.pendI[ch])
		for k := range frames {
			base := k*iqPair*chans + iqPair*ch
			d.pendI[ch] = append(d.pendI[ch], F(data[base]))
			d.pendQ[ch] = append(d.pendQ[ch], F(data[base+1]))
		}
		d.ops.Scale(d.pendI[ch][lo:], d.pendI[ch][lo:], 1/fullScale)
		d.ops.Scale(d.pendQ[ch][lo:], d.pendQ[ch][lo:], 1/fullScale)
	}
}

// drain resamples every whole block pending and returns the interleaved
// output. With final set, a trailing partial block is processed down to a
// multiple of Q; fewer than Q leftover samples are dropped.
func (d *decimator[F]) drain(final bool) ([]int, error) {
	d.out = d.out[:0]
	for {
		n := len(d.pendI[0])
		block := d.blockIn
		if n < block {
			if !final || n < d.q {
				break
			}
			block = n - n%d.q
		}
		outLen := block / d.q * d.p

		for ch, r := range d.res {
			if _, err := r.Rotate(d.pendI[ch][:block], d.pendQ[ch][:block], d.outI[ch][:outLen], d.outQ[ch][:outLen]); err != nil {
				return nil, fmt.Errorf("resampling failed on channel %d: %w", ch, err)
			}
			d.pendI[ch] = append(d.pendI[ch][:0], d.pendI[ch][block:]...)
			d.pendQ[ch] = append(d.pendQ[ch][:0], d.pendQ[ch][block:]...)
		}
		d.interleave(outLen)
	}
	if final {
		for ch := range d.res {
			d.pendI[ch], d.pendQ[ch] = d.pendI[ch][:0], d.pendQ[ch][:0]
		}
	}
	return d.out, nil
}

func (d *decimator[F]) interleave(n int) {
	for k := range n {
		for ch := range d.res {
			d.out = append(d.out, toInt16(float64(d.outI[ch][k])), toInt16(float64(d.outQ[ch][k])))
		}
	}
}

func toInt16(v float64) int {
	s := v * fullScale
	return int(math.Round(max(-fullScale, min(maxInt16, s))))
}

// decimateWAV runs the whole conversion.
func decimateWAV[F simdops.Float](opts options, logger *log.Logger) (stats *decimateStats, err error) {
	input, err := openWAVInput(opts.input, logger)
	if err != nil {
		return nil, err
	}
	defer func() { _ = input.Close() }()

	p, q := opts.p, opts.q
	if opts.toRB != 0 {
		if p, q, err = ratioFor(input.rate, opts.toRB); err != nil {
			return nil, err
		}
	}
	p, q = mathutil.ReduceRatio(p, q)
	if input.rate*p%q != 0 {
		return nil, fmt.Errorf("output rate %d*%d/%d is not an integer", input.rate, p, q)
	}
	outRate := input.rate * p / q

	dec, err := newDecimator[F](input.channels, p, q, opts.taps)
	if err != nil {
		return nil, err
	}

	output, err := createWAVOutput(opts.output, outRate, input.channels)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := output.Close(); err == nil {
			err = closeErr
		}
	}()

	stats = &decimateStats{
		inputRate:  input.rate,
		outputRate: outRate,
		channels:   input.channels,
		p:          p,
		q:          q,
	}
	buf := &audio.IntBuffer{Data: make([]int, bufferSize*iqPair*input.channels), Format: input.format}

	for {
		n, rerr := input.decoder.PCMBuffer(buf)
		if rerr != nil && !errors.Is(rerr, io.EOF) && !errors.Is(rerr, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("failed to read audio data: %w", rerr)
		}
		final := n == 0
		if !final {
			dec.push(buf.Data[:n])
			stats.inputSamples += int64(n / (iqPair * input.channels))
		}

		out, derr := dec.drain(final)
		if derr != nil {
			return nil, derr
		}
		if err := output.WriteSamples(out); err != nil {
			return nil, fmt.Errorf("failed to write audio data: %w", err)
		}
		stats.outputSamples += int64(len(out) / (iqPair * input.channels))
		logger.Debug("progress", "input", stats.inputSamples, "output", stats.outputSamples)

		if final {
			break
		}
	}
	return stats, nil
}
