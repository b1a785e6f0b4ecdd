package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-lte-sync/internal/lte"
	"github.com/tphakala/go-lte-sync/internal/radio"
)

func writeCapture(t *testing.T, rate int, samples [][]int16) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, radio.WriteWAV(f, rate, samples))
	require.NoError(t, f.Close())
	return path
}

func constantIQ(frames int, i, q int16) []int16 {
	s := make([]int16, 2*frames)
	for k := range frames {
		s[2*k], s[2*k+1] = i, q
	}
	return s
}

func TestOpenWAVInput_FileNotFound(t *testing.T) {
	_, err := openWAVInput("/nonexistent/file.wav", log.New(io.Discard))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open input file")
}

func TestOpenWAVInput_InvalidWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invalid.wav")
	require.NoError(t, os.WriteFile(path, []byte("not a wav file"), 0o644))

	_, err := openWAVInput(path, log.New(io.Discard))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid WAV file")
}

func TestOpenWAVInput_PairsChannels(t *testing.T) {
	path := writeCapture(t, 1920000, [][]int16{constantIQ(16, 1, 2), constantIQ(16, 3, 4)})

	in, err := openWAVInput(path, log.New(io.Discard))
	require.NoError(t, err)
	defer func() { _ = in.Close() }()

	assert.Equal(t, 2, in.channels)
	assert.Equal(t, 1920000, in.rate)
}

func TestRatioFor(t *testing.T) {
	tests := []struct {
		name  string
		rate  int
		rbs   int
		p, q  int
		isErr bool
	}{
		{"20 MHz to 1.4 MHz", 30720000, 6, 1, 16, false},
		{"3 MHz to 1.4 MHz", 3840000, 6, 1, 2, false},
		{"up to 5 MHz", 3840000, 25, 2, 1, false},
		{"odd capture rate", 2000000, 6, 24, 25, false},
		{"bad resource blocks", 3840000, 7, 0, 0, true},
		{"zero rate", 0, 6, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, q, err := ratioFor(tt.rate, tt.rbs)
			if tt.isErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.p, p)
			assert.Equal(t, tt.q, q)
		})
	}
}

func TestDecimator_HoldsPartialBlocks(t *testing.T) {
	d, err := newDecimator[float64](1, 1, 2, 16)
	require.NoError(t, err)

	d.push([]int{1, 1, 2, 2, 3, 3, 4, 4, 5, 5})
	out, err := d.drain(false)
	require.NoError(t, err)
	assert.Empty(t, out, "a partial block waits for more input")

	out, err = d.drain(true)
	require.NoError(t, err)
	assert.Len(t, out, 4, "four inputs give two IQ outputs, the fifth is dropped")
	assert.Empty(t, d.pendI[0])
}

func TestDecimator_ReducesRatio(t *testing.T) {
	d, err := newDecimator[float32](2, 2, 4, 16)
	require.NoError(t, err)
	assert.Equal(t, 1, d.p)
	assert.Equal(t, 2, d.q)
	assert.Zero(t, d.blockIn%d.q)
	assert.LessOrEqual(t, d.blockOut, 32768)
}

func TestToInt16_Clamps(t *testing.T) {
	assert.Equal(t, 32767, toInt16(2))
	assert.Equal(t, -32768, toInt16(-2))
	assert.Equal(t, 16384, toInt16(0.5))
}

func TestDecimateWAV_ToResourceBlocks(t *testing.T) {
	const frames = 4 * 3840
	in := writeCapture(t, int(lte.RB15.SampleRate()), [][]int16{constantIQ(frames, 8000, -4000)})
	out := filepath.Join(t.TempDir(), "out.wav")

	opts := options{p: 1, q: 1, toRB: 6, taps: 32, input: in, output: out}
	stats, err := decimateWAV[float64](opts, log.New(io.Discard))
	require.NoError(t, err)

	assert.Equal(t, int(lte.RB6.SampleRate()), stats.outputRate)
	assert.Equal(t, 1, stats.p)
	assert.Equal(t, 2, stats.q)
	assert.Equal(t, int64(frames), stats.inputSamples)
	assert.Equal(t, int64(frames/2), stats.outputSamples)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	assert.Equal(t, 2, buf.Format.NumChannels)
	assert.Equal(t, int(lte.RB6.SampleRate()), buf.Format.SampleRate)
	require.Len(t, buf.Data, frames)

	// DC passes at unity once the filter memory has filled.
	for k := frames / 2; k < frames; k += 2 {
		assert.InDelta(t, 8000, buf.Data[k], 2)
		assert.InDelta(t, -4000, buf.Data[k+1], 2)
	}
}

func TestDecimateWAV_FloatPrecisions(t *testing.T) {
	in := writeCapture(t, 1920000, [][]int16{constantIQ(1000, 100, 100)})

	for _, fast := range []bool{false, true} {
		out := filepath.Join(t.TempDir(), "out.wav")
		opts := options{p: 3, q: 2, taps: 16, fast: fast, input: in, output: out}

		var stats *decimateStats
		var err error
		if fast {
			stats, err = decimateWAV[float32](opts, log.New(io.Discard))
		} else {
			stats, err = decimateWAV[float64](opts, log.New(io.Discard))
		}
		require.NoError(t, err)
		assert.Equal(t, 2880000, stats.outputRate)
		assert.Equal(t, int64(1500), stats.outputSamples)
	}
}

func TestParseArgs(t *testing.T) {
	opts, err := parseArgs([]string{"-q", "16", "--fast", "a.wav", "b.wav"})
	require.NoError(t, err)
	assert.Equal(t, 1, opts.p)
	assert.Equal(t, 16, opts.q)
	assert.True(t, opts.fast)
	assert.Equal(t, "a.wav", opts.input)
	assert.Equal(t, "b.wav", opts.output)

	_, err = parseArgs([]string{"a.wav"})
	require.Error(t, err)

	_, err = parseArgs([]string{"-q", "0", "a.wav", "b.wav"})
	require.Error(t, err)
}
