package detect

import (
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-lte-sync/internal/lte"
)

func TestLayout(t *testing.T) {
	tests := []struct {
		n, l int
		want float64
	}{
		{64, 0, 5},
		{64, 5, 347.5},
		{64, 6, 416},
		{64, 7, 485},
		{128, 0, 10},
		{128, 6, 832},
		{128, 13, 1792},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, symbolStart(tt.n, tt.l), 1e-12, "n=%d l=%d", tt.n, tt.l)
	}

	assert.InDelta(t, 480, slotLen(lte.SyncFFTSize), 1e-12)
	assert.InDelta(t, 9, cpLen(128, 3), 1e-12)

	assert.Equal(t, -31, carrier(0))
	assert.Equal(t, -1, carrier(30))
	assert.Equal(t, 1, carrier(31))
	assert.Equal(t, 31, carrier(61))
	assert.Equal(t, 33, bin(-31, 64))
}

func TestPSSSequence(t *testing.T) {
	var seq [lte.NumSectors][numCarriers]complex128
	for s := range lte.NumSectors {
		seq[s] = pssSequence(s)
		for _, d := range seq[s] {
			require.InDelta(t, 1, cmplx.Abs(d), 1e-12)
		}
	}

	// Roots 29 and 34 sum to 63, so their sequences are conjugates.
	for k := range numCarriers {
		assert.InDelta(t, 0, cmplx.Abs(seq[2][k]-cmplx.Conj(seq[1][k])), 1e-9)
	}

	for a := range lte.NumSectors {
		for b := range lte.NumSectors {
			if a == b {
				continue
			}
			var acc complex128
			for k := range numCarriers {
				acc += seq[a][k] * cmplx.Conj(seq[b][k])
			}
			x := cmplx.Abs(acc) / numCarriers
			assert.Less(t, x*x, 0.05, "sectors %d and %d", a, b)
		}
	}
}

func TestMSequencesBalanced(t *testing.T) {
	for name, s := range map[string][31]float64{"s": sssBase, "c": sssScram, "z": sssZ} {
		var sum float64
		for _, v := range s {
			sum += v
		}
		assert.Equal(t, -1.0, sum, name)
	}
}

func TestSSSIndices(t *testing.T) {
	tests := []struct{ group, m0, m1 int }{
		{0, 0, 1},
		{29, 29, 30},
		{30, 0, 2},
		{167, 2, 9},
	}
	for _, tt := range tests {
		m0, m1 := sssIndices(tt.group)
		assert.Equal(t, tt.m0, m0, "group %d", tt.group)
		assert.Equal(t, tt.m1, m1, "group %d", tt.group)
	}

	seen := make(map[[2]int]int)
	for g := range lte.NumGroups {
		m0, m1 := sssIndices(g)
		require.NotEqual(t, m0, m1)
		key := [2]int{m0, m1}
		prev, dup := seen[key]
		require.False(t, dup, "groups %d and %d share (%d, %d)", prev, g, m0, m1)
		seen[key] = g
	}
}

func TestSSSSequenceHalvesDiffer(t *testing.T) {
	var a, b [numCarriers]float64
	sssSequence(&a, 42, 1, 0)
	sssSequence(&b, 42, 1, 1)

	var dot float64
	for k := range numCarriers {
		require.Contains(t, []float64{-1, 1}, a[k])
		dot += a[k] * b[k]
	}
	assert.Less(t, dot*dot/(numCarriers*numCarriers), 0.3)
}
