// Package iq holds planar complex sample vectors shared by the resampler,
// the subframe assembler and the detectors.
package iq

import (
	"math"

	"github.com/tphakala/go-lte-sync/internal/simdops"
)

// Vector is a planar complex float32 vector. I and Q always have equal length.
type Vector struct {
	I []float32
	Q []float32
}

// NewVector allocates a zeroed vector of n samples.
func NewVector(n int) Vector {
	return Vector{I: make([]float32, n), Q: make([]float32, n)}
}

// Len returns the number of complex samples.
func (v Vector) Len() int { return len(v.I) }

// Slice returns the sub-vector [lo, hi).
func (v Vector) Slice(lo, hi int) Vector {
	return Vector{I: v.I[lo:hi], Q: v.Q[lo:hi]}
}

// At returns sample k as complex128.
func (v Vector) At(k int) complex128 {
	return complex(float64(v.I[k]), float64(v.Q[k]))
}

// Set stores c at sample k.
func (v Vector) Set(k int, c complex128) {
	v.I[k] = float32(real(c))
	v.Q[k] = float32(imag(c))
}

// Complex copies v[lo:lo+len(dst)] into dst.
func (v Vector) Complex(dst []complex128, lo int) {
	for k := range dst {
		dst[k] = complex(float64(v.I[lo+k]), float64(v.Q[lo+k]))
	}
}

// Zero clears every sample.
func (v Vector) Zero() {
	clear(v.I)
	clear(v.Q)
}

// Power returns the mean power of the vector.
func (v Vector) Power() float64 {
	if len(v.I) == 0 {
		return 0
	}
	dot := simdops.Float32Ops().DotProductUnsafe
	sum := float64(dot(v.I, v.I)) + float64(dot(v.Q, v.Q))
	return sum / float64(len(v.I))
}

// Deinterleave splits interleaved sc16 pairs into v scaled by scale.
// It converts min(len(src)/2, v.Len()) samples.
func Deinterleave(v Vector, src []int16, scale float32) {
	n := min(len(src)/2, v.Len())
	for k := range n {
		v.I[k] = float32(src[2*k]) * scale
		v.Q[k] = float32(src[2*k+1]) * scale
	}
}

// Interleave writes v into interleaved sc16 pairs, scaling by scale and
// saturating to the int16 range.
func Interleave(dst []int16, v Vector, scale float32) {
	n := min(len(dst)/2, v.Len())
	for k := range n {
		dst[2*k] = saturate(v.I[k] * scale)
		dst[2*k+1] = saturate(v.Q[k] * scale)
	}
}

func saturate(x float32) int16 {
	r := math.Round(float64(x))
	switch {
	case r > math.MaxInt16:
		return math.MaxInt16
	case r < math.MinInt16:
		return math.MinInt16
	}
	return int16(r)
}
