package simdops

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpsMatchScalar(t *testing.T) {
	ops := For[float32]()

	a := make([]float32, 384)
	c := make([]float32, 384)
	var want float32
	for i := range a {
		a[i] = float32(i%7) * 0.25
		c[i] = float32(i%5) * 0.5
		want += a[i] * c[i]
	}

	assert.InDelta(t, want, ops.DotProductUnsafe(a, c), 1e-2)

	dst := make([]float32, len(a))
	ops.Scale(dst, a, 2)
	for i := range a {
		assert.InDelta(t, 2*a[i], dst[i], 1e-6)
	}
}

func TestForReturnsSharedInstances(t *testing.T) {
	assert.Same(t, Float32Ops(), For[float32]())
	assert.NotNil(t, For[float64]().Scale)
}

// BenchmarkIndirectF32DotProduct measures the indirect call at the default
// resampler tap count.
func BenchmarkIndirectF32DotProduct(b *testing.B) {
	ops := For[float32]()
	a := make([]float32, 384)
	c := make([]float32, 384)
	for i := range a {
		a[i] = float32(i) * 0.01
		c[i] = float32(i) * 0.02
	}

	b.ReportAllocs()
	for b.Loop() {
		_ = ops.DotProductUnsafe(a, c)
	}
}
