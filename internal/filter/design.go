// Package filter designs the windowed-sinc prototype behind the rational
// resampler and decomposes it into polyphase partitions.
package filter

import (
	"errors"
	"fmt"
	"math"

	"github.com/tphakala/go-lte-sync/internal/mathutil"
	"github.com/tphakala/simd/f64"
)

// ErrInvalidParams is returned for prototype parameters that cannot be built.
var ErrInvalidParams = errors.New("invalid filter parameters")

// BlackmanHarrisWindow returns a 4-term Blackman-Harris window of the given
// length, evaluated over length-1 intervals.
func BlackmanHarrisWindow(length int) []float64 {
	if length < 1 {
		return []float64{}
	}

	window := make([]float64, length)
	if length == 1 {
		window[0] = 1
		return window
	}

	span := float64(length - 1)
	for i := range length {
		x := float64(i) / span
		window[i] = bhA0 -
			bhA1*math.Cos(2*math.Pi*x) +
			bhA2*math.Cos(4*math.Pi*x) -
			bhA3*math.Cos(6*math.Pi*x)
	}

	return window
}

// PrototypeParams describes the prototype lowpass of a P/Q resampler.
type PrototypeParams struct {
	// Interp is the interpolation factor P (number of partitions).
	Interp int

	// Decim is the decimation factor Q.
	Decim int

	// TapsPerPhase is the length of each partition. The prototype has
	// Interp*TapsPerPhase taps.
	TapsPerPhase int

	// Factor widens (>1) or narrows (<1) the sinc relative to the
	// max(P, Q) cutoff.
	Factor float64
}

// Validate checks if prototype parameters are valid.
func (pp *PrototypeParams) Validate() error {
	if pp.Interp < 1 || pp.Decim < 1 {
		return fmt.Errorf("%w: ratio %d/%d", ErrInvalidParams, pp.Interp, pp.Decim)
	}

	if pp.TapsPerPhase < minTapsPerPhase {
		return fmt.Errorf("%w: %d taps per phase (minimum %d)", ErrInvalidParams, pp.TapsPerPhase, minTapsPerPhase)
	}

	if pp.Interp*pp.TapsPerPhase > maxPrototypeLen {
		return fmt.Errorf("%w: prototype of %d taps", ErrInvalidParams, pp.Interp*pp.TapsPerPhase)
	}

	if pp.Factor <= 0 || math.IsNaN(pp.Factor) || math.IsInf(pp.Factor, 0) {
		return fmt.Errorf("%w: factor %f", ErrInvalidParams, pp.Factor)
	}

	return nil
}

// DesignPrototype builds the Blackman-Harris windowed sinc prototype.
//
// Tap i is sinc((i - mid) / max(P,Q) / factor) * w[i] with mid = len/2
// (integer division). The result is scaled by P/sum so that every partition
// of the decomposed bank has unity DC gain on average.
func DesignPrototype(params PrototypeParams) ([]float64, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	protoLen := params.Interp * params.TapsPerPhase
	mid := float64(protoLen / 2)
	cutoff := float64(max(params.Interp, params.Decim))

	proto := BlackmanHarrisWindow(protoLen)
	for i := range proto {
		proto[i] *= mathutil.Sinc((float64(i) - mid) / cutoff / params.Factor)
	}

	sum := f64.Sum(proto)
	if sum == 0 {
		return nil, fmt.Errorf("%w: prototype sums to zero", ErrInvalidParams)
	}
	f64.Scale(proto, proto, float64(params.Interp)/sum)

	return proto, nil
}

// FilterResponse holds the frequency response of a filter.
type FilterResponse struct {
	// Frequencies at which response was calculated (normalized, 0 to 0.5)
	Frequencies []float64

	// Magnitude response at each frequency (linear scale)
	Magnitude []float64
}

// ComputeFrequencyResponse evaluates the DTFT of an FIR filter at numPoints
// frequencies between DC and Nyquist.
func ComputeFrequencyResponse(coeffs []float64, numPoints int) FilterResponse {
	if numPoints <= 0 {
		numPoints = defaultResponsePoints
	}

	response := FilterResponse{
		Frequencies: make([]float64, numPoints),
		Magnitude:   make([]float64, numPoints),
	}

	for k := range numPoints {
		freq := float64(k) / float64(frequencyNyquistDivisor*numPoints)
		response.Frequencies[k] = freq

		var re, im float64
		omega := 2 * math.Pi * freq
		for n, h := range coeffs {
			angle := omega * float64(n)
			re += h * math.Cos(angle)
			im -= h * math.Sin(angle)
		}

		response.Magnitude[k] = math.Hypot(re, im)
	}

	return response
}

// MagnitudeDB converts linear magnitude to decibels.
func MagnitudeDB(magnitude float64) float64 {
	const (
		minMagnitude = 1e-10 // Avoid log(0)
		dbMultiplier = 20.0  // 20*log10 for magnitude
	)

	if magnitude < minMagnitude {
		magnitude = minMagnitude
	}
	return dbMultiplier * math.Log10(magnitude)
}
