package engine

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func noise(n int, seed uint64) (i, q []float32) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	i = make([]float32, n)
	q = make([]float32, n)
	for k := range n {
		i[k] = float32(rng.NormFloat64())
		q[k] = float32(rng.NormFloat64())
	}
	return i, q
}

// =============================================================================
// Block length rules
// =============================================================================

func TestRational_BlockLengthValidation(t *testing.T) {
	r, err := NewRational[float32](2, 3, 16, 0, 1)
	require.NoError(t, err)

	tests := []struct {
		name   string
		in     int
		out    int
		wantOK bool
	}{
		{"matched", 30, 20, true},
		{"input not multiple of Q", 31, 20, false},
		{"output not multiple of P", 30, 21, false},
		{"block mismatch", 30, 22, false},
		{"empty", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inI, inQ := noise(tt.in, 1)
			outI, outQ := make([]float32, tt.out), make([]float32, tt.out)

			n, err := r.Rotate(inI, inQ, outI, outQ)
			if tt.wantOK {
				require.NoError(t, err)
				assert.Equal(t, tt.out, n)
			} else {
				require.ErrorIs(t, err, ErrBlockLength)
			}
		})
	}
}

func TestRational_RejectsOversizedBlock(t *testing.T) {
	r, err := NewRational[float32](1, 1, 4, 0, 1)
	require.NoError(t, err)

	n := MaxOutputLen + 1
	buf := make([]float32, n)
	_, err = r.Rotate(buf, buf, buf, buf)
	require.ErrorIs(t, err, ErrBlockLength)
}

func TestRational_RotateNBounds(t *testing.T) {
	r, err := NewRational[float32](1, 2, 8, 0, 1)
	require.NoError(t, err)

	inI, inQ := noise(32, 2)
	outI, outQ := make([]float32, 16), make([]float32, 16)

	_, err = r.RotateN(inI, inQ, outI, outQ, 17)
	require.ErrorIs(t, err, ErrBlockLength)

	n, err := r.RotateN(inI, inQ, outI, outQ, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, n, "returns the outputs computed")
	assert.NotZero(t, outI[3])
	assert.Zero(t, outI[4], "outputs past n are untouched")

	n, err = r.Rotate(inI, inQ, outI, outQ)
	require.NoError(t, err)
	assert.Equal(t, 16, n)
}

func TestRational_UpdateValidatesInput(t *testing.T) {
	r, err := NewRational[float32](1, 4, 8, 0, 1)
	require.NoError(t, err)

	inI, inQ := noise(10, 3)
	require.ErrorIs(t, r.Update(inI, inQ), ErrBlockLength)
	require.ErrorIs(t, r.Update(inI[:8], inQ[:4]), ErrBlockLength)
}

func TestRational_LengthProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := rapid.IntRange(1, 6).Draw(t, "p")
		q := rapid.IntRange(1, 6).Draw(t, "q")
		blocks := rapid.IntRange(0, 64).Draw(t, "blocks")

		r, err := NewRational[float32](p, q, 8, 0, 1)
		if err != nil {
			t.Fatalf("new: %v", err)
		}

		inI, inQ := noise(blocks*q, 4)
		outI, outQ := make([]float32, blocks*p), make([]float32, blocks*p)

		n, err := r.Rotate(inI, inQ, outI, outQ)
		if err != nil {
			t.Fatalf("rotate: %v", err)
		}
		if n*q != len(inI)*p {
			t.Fatalf("output %d for input %d at %d/%d", n, len(inI), p, q)
		}
	})
}

// =============================================================================
// Filter behavior
// =============================================================================

// A 1/1 prototype is a delta at its midpoint, which makes the resampler a
// pure delay of taps/2 + delay samples.
func TestRational_IdentityIsPureDelay(t *testing.T) {
	for _, delay := range []int{0, 3} {
		r, err := NewRational[float32](1, 1, 16, delay, 1)
		require.NoError(t, err)

		inI, inQ := noise(64, 5)
		outI, outQ := make([]float32, 32), make([]float32, 32)

		_, err = r.Rotate(inI[:32], inQ[:32], outI, outQ)
		require.NoError(t, err)
		_, err = r.Rotate(inI[32:], inQ[32:], outI, outQ)
		require.NoError(t, err)

		shift := 8 + delay
		for k := range 32 {
			assert.InDelta(t, inI[32+k-shift], outI[k], 1e-5, "delay %d sample %d", delay, k)
			assert.InDelta(t, inQ[32+k-shift], outQ[k], 1e-5, "delay %d sample %d", delay, k)
		}
	}
}

func TestRational_DecimatorDCGain(t *testing.T) {
	r, err := NewRational[float32](1, 4, 64, 0, 1)
	require.NoError(t, err)

	inI := make([]float32, 256)
	inQ := make([]float32, 256)
	for k := range inI {
		inI[k] = 1
		inQ[k] = -0.5
	}
	outI, outQ := make([]float32, 64), make([]float32, 64)

	// First block warms the history.
	_, err = r.Rotate(inI, inQ, outI, outQ)
	require.NoError(t, err)
	_, err = r.Rotate(inI, inQ, outI, outQ)
	require.NoError(t, err)

	for k := range outI {
		assert.InDelta(t, 1.0, outI[k], 1e-4)
		assert.InDelta(t, -0.5, outQ[k], 1e-4)
	}
}

func TestRational_RejectsOutOfBandTone(t *testing.T) {
	// Decimate by 8: a tone at 0.3 of the input rate must vanish.
	r, err := NewRational[float32](1, 8, 256, 0, 1)
	require.NoError(t, err)

	n := 2048
	inI, inQ := make([]float32, n), make([]float32, n)
	for k := range n {
		ph := 2 * math.Pi * 0.3 * float64(k)
		inI[k] = float32(math.Cos(ph))
		inQ[k] = float32(math.Sin(ph))
	}
	outI, outQ := make([]float32, n/8), make([]float32, n/8)

	_, err = r.Rotate(inI, inQ, outI, outQ)
	require.NoError(t, err)
	_, err = r.Rotate(inI, inQ, outI, outQ)
	require.NoError(t, err)

	var peak float64
	for k := range outI {
		peak = max(peak, math.Hypot(float64(outI[k]), float64(outQ[k])))
	}
	assert.Less(t, peak, 1e-3)
}

// =============================================================================
// History continuity
// =============================================================================

func TestRational_SplitBlocksMatchWholeBlock(t *testing.T) {
	for _, ratio := range [][2]int{{1, 2}, {2, 3}, {3, 2}, {1, 16}} {
		p, q := ratio[0], ratio[1]
		whole, err := NewRational[float32](p, q, 32, 0, 1)
		require.NoError(t, err)
		split, err := NewRational[float32](p, q, 32, 0, 1)
		require.NoError(t, err)

		blockIn := q * 48
		blockOut := p * 48
		inI, inQ := noise(2*blockIn, 6)

		wI, wQ := make([]float32, 2*blockOut), make([]float32, 2*blockOut)
		_, err = whole.Rotate(inI, inQ, wI, wQ)
		require.NoError(t, err)

		sI, sQ := make([]float32, 2*blockOut), make([]float32, 2*blockOut)
		_, err = split.Rotate(inI[:blockIn], inQ[:blockIn], sI[:blockOut], sQ[:blockOut])
		require.NoError(t, err)
		_, err = split.Rotate(inI[blockIn:], inQ[blockIn:], sI[blockOut:], sQ[blockOut:])
		require.NoError(t, err)

		assert.InDeltaSlice(t, wI, sI, 1e-4, "%d/%d I", p, q)
		assert.InDeltaSlice(t, wQ, sQ, 1e-4, "%d/%d Q", p, q)
	}
}

func TestRational_UpdateKeepsContinuity(t *testing.T) {
	a, err := NewRational[float32](1, 2, 24, 2, 1)
	require.NoError(t, err)
	b, err := NewRational[float32](1, 2, 24, 2, 1)
	require.NoError(t, err)

	inI, inQ := noise(128, 7)
	scratchI, scratchQ := make([]float32, 32), make([]float32, 32)

	_, err = a.Rotate(inI[:64], inQ[:64], scratchI, scratchQ)
	require.NoError(t, err)
	require.NoError(t, b.Update(inI[:64], inQ[:64]))

	aI, aQ := make([]float32, 32), make([]float32, 32)
	bI, bQ := make([]float32, 32), make([]float32, 32)
	_, err = a.Rotate(inI[64:], inQ[64:], aI, aQ)
	require.NoError(t, err)
	_, err = b.Rotate(inI[64:], inQ[64:], bI, bQ)
	require.NoError(t, err)

	assert.InDeltaSlice(t, aI, bI, 1e-6)
	assert.InDeltaSlice(t, aQ, bQ, 1e-6)
}

func TestRational_ShortBlocksStillContinuous(t *testing.T) {
	// Blocks shorter than the history still chain correctly.
	whole, err := NewRational[float32](1, 1, 16, 0, 1)
	require.NoError(t, err)
	chunked, err := NewRational[float32](1, 1, 16, 0, 1)
	require.NoError(t, err)

	inI, inQ := noise(40, 8)
	wI, wQ := make([]float32, 40), make([]float32, 40)
	_, err = whole.Rotate(inI, inQ, wI, wQ)
	require.NoError(t, err)

	cI, cQ := make([]float32, 40), make([]float32, 40)
	for off := 0; off < 40; off += 5 {
		if off%10 == 0 {
			require.NoError(t, chunked.Update(inI[off:off+5], inQ[off:off+5]))
			copy(cI[off:off+5], wI[off:off+5])
			copy(cQ[off:off+5], wQ[off:off+5])
			continue
		}
		_, err = chunked.Rotate(inI[off:off+5], inQ[off:off+5], cI[off:off+5], cQ[off:off+5])
		require.NoError(t, err)
	}

	assert.InDeltaSlice(t, wI, cI, 1e-5)
	assert.InDeltaSlice(t, wQ, cQ, 1e-5)
}

func TestRational_Reset(t *testing.T) {
	r, err := NewRational[float32](1, 1, 8, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 8, r.HistoryLen())

	inI, inQ := noise(8, 9)
	require.NoError(t, r.Update(inI, inQ))
	r.Reset()

	outI, outQ := make([]float32, 4), make([]float32, 4)
	zero := make([]float32, 4)
	_, err = r.Rotate(zero, zero, outI, outQ)
	require.NoError(t, err)
	assert.Equal(t, zero, outI)

	p, q := r.Ratio()
	assert.Equal(t, 1, p)
	assert.Equal(t, 1, q)
}

func TestRational_InvalidConstruction(t *testing.T) {
	_, err := NewRational[float32](0, 1, 8, 0, 1)
	require.Error(t, err)
	_, err = NewRational[float32](1, 1, 8, -1, 1)
	require.Error(t, err)
}

func BenchmarkRational_SyncView(b *testing.B) {
	// 6 RB subframe to the sync view: 1920 -> 960 with 384 taps.
	r, err := NewRational[float32](1, 2, 384, 0, 1)
	require.NoError(b, err)

	inI, inQ := noise(1920, 10)
	outI, outQ := make([]float32, 960), make([]float32, 960)

	b.ReportAllocs()
	for b.Loop() {
		_, _ = r.Rotate(inI, inQ, outI, outQ)
	}
}
