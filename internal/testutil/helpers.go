// Package testutil provides IQ signal generators and shared assertions for
// the receiver tests.
package testutil

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tphakala/go-lte-sync/internal/iq"
)

// Default tolerances for various test scenarios.
const (
	DefaultTolerance = 1e-6
	FrequencyHz      = 25.0
)

// RNG returns a deterministic generator for seed.
func RNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Noise returns n samples of complex Gaussian noise with total power
// sigma².
func Noise(n int, sigma float64, seed uint64) iq.Vector {
	v := iq.NewVector(n)
	AddNoise(v, sigma, seed)
	return v
}

// AddNoise adds complex Gaussian noise with total power sigma² to v.
func AddNoise(v iq.Vector, sigma float64, seed uint64) {
	rng := RNG(seed)
	s := sigma / math.Sqrt2
	for k := range v.Len() {
		v.I[k] += float32(rng.NormFloat64() * s)
		v.Q[k] += float32(rng.NormFloat64() * s)
	}
}

// Rotate applies a carrier offset of hz at sample rate rate to v, whose
// first sample is sample number first of the stream.
func Rotate(v iq.Vector, hz, rate float64, first int64) {
	for k := range v.Len() {
		ph := 2 * math.Pi * hz * float64(first+int64(k)) / rate
		v.Set(k, v.At(k)*complex(math.Cos(ph), math.Sin(ph)))
	}
}

// Shift returns a copy of v delayed by d samples (advanced for negative d),
// zero filled at the edges.
func Shift(v iq.Vector, d int) iq.Vector {
	out := iq.NewVector(v.Len())
	for k := range v.Len() {
		if src := k - d; src >= 0 && src < v.Len() {
			out.I[k], out.Q[k] = v.I[src], v.Q[src]
		}
	}
	return out
}

// Ramp returns n interleaved sc16 samples with I = first+k and Q = -(first+k).
func Ramp(n, first int) []int16 {
	out := make([]int16, 2*n)
	for k := range n {
		out[2*k] = int16(first + k)
		out[2*k+1] = int16(-(first + k))
	}
	return out
}

// AssertFinite verifies that no sample of v is NaN or Inf.
func AssertFinite(t *testing.T, v iq.Vector, msgAndArgs ...any) bool {
	t.Helper()
	for k := range v.Len() {
		i, q := float64(v.I[k]), float64(v.Q[k])
		if math.IsNaN(i) || math.IsNaN(q) || math.IsInf(i, 0) || math.IsInf(q, 0) {
			return assert.Fail(t, "non-finite sample", "sample %d is (%f, %f)", k, i, q)
		}
	}
	return true
}

// AssertRelativeError verifies that the relative error between actual and expected is within tolerance.
func AssertRelativeError(t *testing.T, expected, actual, tolerance float64, msgAndArgs ...any) bool {
	t.Helper()
	if expected == 0 {
		return assert.InDelta(t, expected, actual, tolerance, msgAndArgs...)
	}
	relError := math.Abs(actual-expected) / math.Abs(expected)
	return assert.LessOrEqual(t, relError, tolerance,
		"relative error %e exceeds tolerance %e (expected=%f, actual=%f)",
		relError, tolerance, expected, actual)
}

// AssertInRange verifies that a value is within [min, max].
func AssertInRange(t *testing.T, value, minVal, maxVal float64, msgAndArgs ...any) bool {
	t.Helper()
	if value < minVal || value > maxVal {
		return assert.Fail(t, "value out of range",
			"value %f is outside range [%f, %f]", value, minVal, maxVal)
	}
	return true
}
