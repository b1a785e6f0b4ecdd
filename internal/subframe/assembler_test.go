package subframe

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-lte-sync/internal/lte"
)

const testTaps = 16 // d = 8, history = 72

func newTestAssembler(t *testing.T, chans, taps int) *Assembler {
	t.Helper()
	a, err := New(chans, lte.RB6, taps)
	require.NoError(t, err)
	return a
}

func fillRamp(buf []int16, base int) {
	for k := range len(buf) / 2 {
		buf[2*k] = int16(base + k)
		buf[2*k+1] = int16(-(base + k))
	}
}

func fillNoise(buf []int16, rng *rand.Rand) {
	for k := range buf {
		buf[k] = int16(rng.IntN(2001) - 1000)
	}
}

// cycle closes one subframe the way the sync loop does.
func cycle(t *testing.T, a *Assembler) {
	t.Helper()
	require.NoError(t, a.Update())
	a.Reset()
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name  string
		chans int
		bw    lte.Bandwidth
		taps  int
	}{
		{"no channels", 0, lte.RB6, 16},
		{"unknown bandwidth", 1, lte.Bandwidth(42), 16},
		{"too few taps", 1, lte.RB6, 2},
		{"taps longer than subframe", 1, lte.RB6, 4096},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.chans, tt.bw, tt.taps)
			require.ErrorIs(t, err, ErrConfig)
		})
	}
}

func TestNew_Geometry(t *testing.T) {
	for _, bw := range lte.Bandwidths() {
		t.Run(bw.String(), func(t *testing.T) {
			a, err := New(2, bw, DefaultTaps)
			require.NoError(t, err)

			assert.Equal(t, bw.SubframeLen(), a.Len())
			assert.Equal(t, 2, a.Channels())
			assert.Equal(t, DefaultTaps/2+OffsetLimit, a.HistoryLen())
			assert.Len(t, a.Raw(1), 2*bw.SubframeLen())

			ok, err := a.PreprocessSyncView()
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, lte.SyncSubframeLen, a.SyncViews()[0].Len())

			ok, err = a.PreprocessBroadcastViews()
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, lte.BroadcastViewLen, a.BroadcastViews()[1].Len())
		})
	}
}

func TestSetRaw(t *testing.T) {
	a := newTestAssembler(t, 1, testTaps)
	own := a.Raw(0)

	require.ErrorIs(t, a.SetRaw(0, make([]int16, 10)), ErrConfig)

	borrowed := make([]int16, 2*a.Len())
	require.NoError(t, a.SetRaw(0, borrowed))
	assert.Same(t, &borrowed[0], &a.Raw(0)[0])

	require.NoError(t, a.SetRaw(0, nil))
	assert.Same(t, &own[0], &a.Raw(0)[0])
}

func TestConvert_OncePerSubframe(t *testing.T) {
	a := newTestAssembler(t, 1, testTaps)
	raw := a.Raw(0)
	for k := range a.Len() {
		raw[2*k] = 127
		raw[2*k+1] = -127
	}

	assert.True(t, a.Convert())
	assert.InDelta(t, 1.0, a.Base(0).I[0], 1e-6)
	assert.InDelta(t, -1.0, a.Base(0).Q[a.Len()-1], 1e-6)

	raw[0] = 0
	assert.False(t, a.Convert(), "second conversion in the same subframe")
	assert.InDelta(t, 1.0, a.Base(0).I[0], 1e-6)

	a.Reset()
	assert.True(t, a.Convert())
	assert.Zero(t, a.Base(0).I[0])
}

func TestSyncView_OncePerSubframe(t *testing.T) {
	a := newTestAssembler(t, 2, testTaps)

	ok, err := a.PreprocessSyncView()
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.PreprocessSyncView()
	require.NoError(t, err)
	assert.False(t, ok)

	cycle(t, a)
	ok, err = a.PreprocessSyncView()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSyncView_DCGain(t *testing.T) {
	a := newTestAssembler(t, 1, 64)
	raw := a.Raw(0)
	for k := range a.Len() {
		raw[2*k] = 127
		raw[2*k+1] = 0
	}

	for range 2 {
		_, err := a.PreprocessSyncView()
		require.NoError(t, err)
		cycle(t, a)
	}
	_, err := a.PreprocessSyncView()
	require.NoError(t, err)

	view := a.SyncViews()[0]
	for k := range view.Len() {
		assert.InDelta(t, 1.0, view.I[k], 1e-3, "sample %d", k)
		assert.InDelta(t, 0.0, view.Q[k], 1e-3, "sample %d", k)
	}
}

// A view produced every subframe and one produced only on the last subframe
// must agree: Update keeps the skipped resampler continuous.
func TestUpdate_KeepsSyncViewContinuous(t *testing.T) {
	every := newTestAssembler(t, 1, 32)
	once := newTestAssembler(t, 1, 32)
	rng := rand.New(rand.NewPCG(1, 2))

	for sf := range 4 {
		fillNoise(every.Raw(0), rng)
		copy(once.Raw(0), every.Raw(0))

		_, err := every.PreprocessSyncView()
		require.NoError(t, err)
		if sf == 3 {
			_, err = once.PreprocessSyncView()
			require.NoError(t, err)
			break
		}
		cycle(t, every)
		cycle(t, once)
	}

	assert.InDeltaSlice(t, every.SyncViews()[0].I, once.SyncViews()[0].I, 1e-5)
	assert.InDeltaSlice(t, every.SyncViews()[0].Q, once.SyncViews()[0].Q, 1e-5)
}

func TestBroadcastView(t *testing.T) {
	// At 6 RBs the broadcast view is 1/1, a pure delay of taps/2.
	a := newTestAssembler(t, 1, testTaps)
	fillRamp(a.Raw(0), 0)
	cycle(t, a)
	fillRamp(a.Raw(0), 5000)

	ok, err := a.PreprocessBroadcastViews()
	require.NoError(t, err)
	require.True(t, ok)
	dst := a.BroadcastViews()[0]

	d := testTaps / 2
	for k := range dst.Len() {
		want := float64(5000+k-d) / 127
		if k < d {
			want = float64(a.Len()-d+k) / 127
		}
		assert.InDelta(t, want, dst.I[k], 1e-2, "sample %d", k)
		assert.InDelta(t, -want, dst.Q[k], 1e-2, "sample %d", k)
	}

	// A second request in the same subframe reuses the view.
	ok, err = a.PreprocessBroadcastViews()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.InDelta(t, float64(5000)/127, dst.I[d], 1e-2)
}

// =============================================================================
// Delay
// =============================================================================

// delayFixture leaves a ramp 0..len-1 as the previous subframe (in the
// look-back history) and 10000+k as the current one.
func delayFixture(t *testing.T) *Assembler {
	t.Helper()
	a := newTestAssembler(t, 1, testTaps)
	fillRamp(a.Raw(0), 0)
	cycle(t, a)
	fillRamp(a.Raw(0), 10000)
	return a
}

func TestDelay(t *testing.T) {
	const (
		d        = testTaps / 2
		sentinel = 7777
	)
	prevLast := delayFixtureLen() - 1

	tests := []struct {
		name   string
		offset int
		head   func(j int) (int, bool) // expected I of head sample j; false = untouched
	}{
		{"aligned", 0, func(j int) (int, bool) { return prevLast - d + 1 + j, true }},
		{"earlier", -10, func(j int) (int, bool) { return prevLast - d + 1 - 10 + j, true }},
		{"history limit", -OffsetLimit, func(j int) (int, bool) { return prevLast - d + 1 - OffsetLimit + j, true }},
		{"later leaves gap", 3, func(j int) (int, bool) {
			if j >= d-3 {
				return 0, false
			}
			return prevLast - d + 1 + 3 + j, true
		}},
		{"beyond history zero fills", -70, func(j int) (int, bool) {
			if j < 6 {
				return 0, true
			}
			return prevLast - (OffsetLimit + d) + 1 + j - 6, true
		}},
		{"clamped to half filter", 100, func(int) (int, bool) { return 0, false }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := delayFixture(t)
			dst := make([]int16, 2*a.Len())
			for k := range dst {
				dst[k] = sentinel
			}

			require.True(t, a.Delay(0, dst, a.Len(), tt.offset))

			for j := range d {
				want, touched := tt.head(j)
				if !touched {
					assert.Equal(t, int16(sentinel), dst[2*j], "head %d", j)
					continue
				}
				assert.Equal(t, int16(want), dst[2*j], "head %d I", j)
				assert.Equal(t, int16(-want), dst[2*j+1], "head %d Q", j)
			}
			for k := range a.Len() - d {
				require.Equal(t, int16(10000+k), dst[2*(d+k)], "body %d", k)
			}
		})
	}
}

func TestDelay_InterpolatesSingleSampleShift(t *testing.T) {
	const d = testTaps / 2
	a := delayFixture(t)
	dst := make([]int16, 2*a.Len())

	require.True(t, a.Delay(0, dst, a.Len(), 1))

	prev := int(dst[2*(d-2)])
	assert.Equal(t, delayFixtureLen()-1, prev)
	assert.Equal(t, int16((prev+10000)/2), dst[2*(d-1)])
	assert.Equal(t, int16((-prev-10000)/2), dst[2*(d-1)+1])
}

func TestDelay_Length(t *testing.T) {
	a := delayFixture(t)
	full := make([]int16, 2*a.Len())
	require.True(t, a.Delay(0, full, a.Len(), -5))

	part := make([]int16, 200)
	require.True(t, a.Delay(0, part, 100, -5))
	assert.Equal(t, full[:200], part)

	assert.False(t, a.Delay(0, make([]int16, 2*a.Len()+2), a.Len()+1, 0), "longer than a subframe")
	assert.False(t, a.Delay(0, make([]int16, 10), 100, 0), "destination too short")
}

func delayFixtureLen() int { return lte.RB6.SubframeLen() }
