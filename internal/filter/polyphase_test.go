package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDesignFilterBank_Structure(t *testing.T) {
	fb, err := DesignFilterBank(PrototypeParams{Interp: 3, Decim: 2, TapsPerPhase: 16, Factor: 1})
	require.NoError(t, err)

	assert.Equal(t, 3, fb.NumPhases)
	assert.Equal(t, 16, fb.TapsPerPhase)
	require.Len(t, fb.Partitions, 3)

	for phase, part := range fb.Partitions {
		require.Len(t, part, 16)
		for tap := range 16 {
			assert.Equal(t, fb.Prototype[tap*3+phase], part[15-tap], "phase %d tap %d reversed", phase, tap)
		}
	}
}

func TestFilterBank_PartitionDCGain(t *testing.T) {
	fb, err := DesignFilterBank(PrototypeParams{Interp: 4, Decim: 3, TapsPerPhase: 64, Factor: 1})
	require.NoError(t, err)

	var total float64
	for phase := range fb.NumPhases {
		g := fb.PartitionDCGain(phase)
		assert.InDelta(t, 1.0, g, 0.02, "phase %d", phase)
		total += g
	}
	assert.InDelta(t, 4.0, total, 1e-9)
}

func TestFilterBank_InvalidParams(t *testing.T) {
	_, err := DesignFilterBank(PrototypeParams{Interp: 1, Decim: 1, TapsPerPhase: 0, Factor: 1})
	require.ErrorIs(t, err, ErrInvalidParams)
}

func TestFilterBank_ResponseAndMemory(t *testing.T) {
	fb, err := DesignFilterBank(PrototypeParams{Interp: 2, Decim: 1, TapsPerPhase: 32, Factor: 1})
	require.NoError(t, err)

	resp := fb.ComputeFrequencyResponse(64)
	assert.InDelta(t, 1.0, resp.Magnitude[0], 1e-9)
	assert.Equal(t, int64(2*2*32*8), fb.GetMemoryUsage())
}
