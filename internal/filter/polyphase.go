package filter

import (
	"fmt"
)

// FilterBank is the polyphase decomposition of a prototype lowpass.
//
// Partition n holds taps proto[i*NumPhases+n] for i in [0, TapsPerPhase),
// stored in reversed order so that a forward dot product against the input
// window ending at the current sample realizes the convolution.
type FilterBank struct {
	// Partitions are the reversed sub-filters, one per phase.
	Partitions [][]float64

	// Prototype is the undecomposed, scaled prototype.
	Prototype []float64

	// NumPhases is the number of partitions (P).
	NumPhases int

	// TapsPerPhase is the length of each partition.
	TapsPerPhase int
}

// DesignFilterBank designs the prototype and decomposes it into partitions.
func DesignFilterBank(params PrototypeParams) (*FilterBank, error) {
	proto, err := DesignPrototype(params)
	if err != nil {
		return nil, fmt.Errorf("failed to design prototype filter: %w", err)
	}

	return &FilterBank{
		Partitions:   decompose(proto, params.Interp, params.TapsPerPhase),
		Prototype:    proto,
		NumPhases:    params.Interp,
		TapsPerPhase: params.TapsPerPhase,
	}, nil
}

// decompose splits the prototype into reversed partitions.
func decompose(prototype []float64, numPhases, tapsPerPhase int) [][]float64 {
	parts := make([][]float64, numPhases)
	for phase := range numPhases {
		parts[phase] = make([]float64, tapsPerPhase)
	}

	for tap := range tapsPerPhase {
		for phase := range numPhases {
			parts[phase][tapsPerPhase-1-tap] = prototype[tap*numPhases+phase]
		}
	}

	return parts
}

// PartitionDCGain returns the DC gain of one partition.
func (fb *FilterBank) PartitionDCGain(phase int) float64 {
	var sum float64
	for _, c := range fb.Partitions[phase] {
		sum += c
	}
	return sum
}

// ComputeFrequencyResponse computes the response of the prototype normalized
// to the upsampled rate.
func (fb *FilterBank) ComputeFrequencyResponse(numPoints int) FilterResponse {
	resp := ComputeFrequencyResponse(fb.Prototype, numPoints)
	scale := 1 / float64(fb.NumPhases)
	for k := range resp.Magnitude {
		resp.Magnitude[k] *= scale
	}
	return resp
}

// GetMemoryUsage returns the approximate memory usage in bytes.
func (fb *FilterBank) GetMemoryUsage() int64 {
	const bytesPerFloat64 = 8
	return int64(2*fb.NumPhases*fb.TapsPerPhase) * bytesPerFloat64
}
