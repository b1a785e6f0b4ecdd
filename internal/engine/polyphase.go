// Package engine implements the sample processing kernels of the receiver:
// the rational polyphase resampler and the FFT cross-correlator used for
// synchronization signal search.
package engine

import (
	"errors"
	"fmt"

	"github.com/tphakala/go-lte-sync/internal/filter"
	"github.com/tphakala/go-lte-sync/internal/simdops"
)

// ErrBlockLength is returned when input and output blocks do not satisfy the
// P/Q block length rules.
var ErrBlockLength = errors.New("invalid resampler block length")

// Rational is a P/Q polyphase resampler over planar complex samples.
//
// Type parameter F must be float32 or float64. The receive path runs float32;
// float64 is used by the offline tools.
//
// Output sample i is produced by partition outputPath[i] correlated against
// the filter-length window of input samples ending at inputIndex[i]-delay.
// The filter memory (history) is logically prepended to every input block
// and is replaced by the tail of the block after each call, so consecutive
// blocks form one continuous signal. Update refreshes the history without
// producing output, which lets one filter serve a cadence where output is
// only needed on some blocks.
type Rational[F simdops.Float] struct {
	p, q         int
	tapsPerPhase int
	delay        int

	// Polyphase partitions in reversed order, one per phase
	partitions [][]F

	// Commutator path
	inputIndex []int
	outputPath []int

	// Filter memory, tapsPerPhase+delay samples
	histI []F
	histQ []F

	// Working buffers holding history followed by the current block
	workI []F
	workQ []F

	// SIMD operations for type F
	ops *simdops.Ops[F]
}

// NewRational creates a resampler converting by p/q with tapsPerPhase taps in
// each of its p partitions. delay shifts every output window delay samples
// earlier; factor scales the prototype cutoff.
func NewRational[F simdops.Float](p, q, tapsPerPhase, delay int, factor float64) (*Rational[F], error) {
	if delay < 0 {
		return nil, fmt.Errorf("resampler delay must be non-negative: %d", delay)
	}

	bank, err := filter.DesignFilterBank(filter.PrototypeParams{
		Interp:       p,
		Decim:        q,
		TapsPerPhase: tapsPerPhase,
		Factor:       factor,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create filterbank: %w", err)
	}

	partitions := make([][]F, p)
	for phase, part := range bank.Partitions {
		partitions[phase] = make([]F, tapsPerPhase)
		for tap, c := range part {
			partitions[phase][tap] = F(c)
		}
	}

	hlen := tapsPerPhase + delay
	r := &Rational[F]{
		p:            p,
		q:            q,
		tapsPerPhase: tapsPerPhase,
		delay:        delay,
		partitions:   partitions,
		histI:        make([]F, hlen),
		histQ:        make([]F, hlen),
		ops:          simdops.For[F](),
	}
	r.computePath()

	return r, nil
}

// computePath precomputes the (input index, partition) pair of every output
// sample up to MaxOutputLen.
func (r *Rational[F]) computePath() {
	r.inputIndex = make([]int, MaxOutputLen)
	r.outputPath = make([]int, MaxOutputLen)

	for i := range MaxOutputLen {
		r.inputIndex[i] = (r.q * i) / r.p
		r.outputPath[i] = (r.q * i) % r.p
	}
}

// Ratio returns the conversion ratio as (P, Q).
func (r *Rational[F]) Ratio() (p, q int) { return r.p, r.q }

// HistoryLen returns the number of samples of filter memory.
func (r *Rational[F]) HistoryLen() int { return len(r.histI) }

// Reset clears the filter memory.
func (r *Rational[F]) Reset() {
	clear(r.histI)
	clear(r.histQ)
}

// Rotate resamples one block, filling the whole output block. It returns the
// number of output samples produced.
func (r *Rational[F]) Rotate(inI, inQ, outI, outQ []F) (int, error) {
	return r.RotateN(inI, inQ, outI, outQ, len(outI))
}

// RotateN resamples one block but computes only the first n output samples
// and returns n. The full block still advances the filter memory.
func (r *Rational[F]) RotateN(inI, inQ, outI, outQ []F, n int) (int, error) {
	if err := r.checkLen(inI, inQ, outI, outQ); err != nil {
		return 0, err
	}
	if n < 0 || n > len(outI) {
		return 0, fmt.Errorf("%w: %d outputs requested from a block of %d", ErrBlockLength, n, len(outI))
	}

	workI, workQ := r.load(inI, inQ)

	dot := r.ops.DotProductUnsafe
	taps := r.tapsPerPhase
	for i := range n {
		// Window ends at input sample inputIndex[i]-delay, which sits at
		// work offset hlen+inputIndex[i]-delay.
		start := r.inputIndex[i] + 1
		h := r.partitions[r.outputPath[i]]

		outI[i] = dot(h, workI[start:start+taps])
		outQ[i] = dot(h, workQ[start:start+taps])
	}

	r.saveHistory(workI, workQ)

	return n, nil
}

// Update advances the filter memory over one input block without producing
// output.
func (r *Rational[F]) Update(inI, inQ []F) error {
	if err := r.checkLen(inI, inQ, nil, nil); err != nil {
		return err
	}

	hlen := len(r.histI)
	if len(inI) >= hlen {
		copy(r.histI, inI[len(inI)-hlen:])
		copy(r.histQ, inQ[len(inQ)-hlen:])
		return nil
	}

	workI, workQ := r.load(inI, inQ)
	r.saveHistory(workI, workQ)

	return nil
}

// load assembles history followed by the input block in the work buffers.
func (r *Rational[F]) load(inI, inQ []F) (workI, workQ []F) {
	hlen := len(r.histI)
	n := hlen + len(inI)

	if cap(r.workI) < n {
		r.workI = make([]F, n, n*historyGrowth)
		r.workQ = make([]F, n, n*historyGrowth)
	}
	workI, workQ = r.workI[:n], r.workQ[:n]

	copy(workI, r.histI)
	copy(workI[hlen:], inI)
	copy(workQ, r.histQ)
	copy(workQ[hlen:], inQ)

	return workI, workQ
}

// saveHistory replaces the filter memory with the tail of the work buffers.
func (r *Rational[F]) saveHistory(workI, workQ []F) {
	hlen := len(r.histI)
	copy(r.histI, workI[len(workI)-hlen:])
	copy(r.histQ, workQ[len(workQ)-hlen:])
}

// checkLen validates block lengths. A nil output skips the output checks.
func (r *Rational[F]) checkLen(inI, inQ, outI, outQ []F) error {
	if len(inI) != len(inQ) {
		return fmt.Errorf("%w: input I/Q lengths %d and %d differ", ErrBlockLength, len(inI), len(inQ))
	}
	if len(inI)%r.q != 0 {
		return fmt.Errorf("%w: input length %d is not a multiple of %d", ErrBlockLength, len(inI), r.q)
	}

	if outI == nil {
		return nil
	}

	if len(outI) != len(outQ) {
		return fmt.Errorf("%w: output I/Q lengths %d and %d differ", ErrBlockLength, len(outI), len(outQ))
	}
	if len(outI)%r.p != 0 {
		return fmt.Errorf("%w: output length %d is not a multiple of %d", ErrBlockLength, len(outI), r.p)
	}
	if len(inI)/r.q != len(outI)/r.p {
		return fmt.Errorf("%w: input/output block length mismatch (%d/%d vs %d/%d)",
			ErrBlockLength, len(inI), r.q, len(outI), r.p)
	}
	if len(outI) > MaxOutputLen {
		return fmt.Errorf("%w: block length %d exceeds max %d", ErrBlockLength, len(outI), MaxOutputLen)
	}

	return nil
}
