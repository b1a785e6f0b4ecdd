package detect

import "math"

// Normal cyclic prefix numerology of the 2048-point grid, scaled to any FFT
// size. At 64 points the prefixes are 5 and 4.5 samples.
const (
	refFFTSize = 2048
	refCP0     = 160
	refCP      = 144

	symbolsPerSlot = 7
	slotsPerSub    = 2

	pssSymbol = 6 // last symbol of slots 0 and 10
	sssSymbol = 5

	// numCarriers is the number of subcarriers carrying PSS and SSS.
	numCarriers = 62
)

// cpLen returns the cyclic prefix length of symbol l of a slot.
func cpLen(n, l int) float64 {
	if l%symbolsPerSlot == 0 {
		return refCP0 * float64(n) / refFFTSize
	}
	return refCP * float64(n) / refFFTSize
}

// slotLen returns the length of one slot in samples.
func slotLen(n int) float64 {
	return float64(symbolsPerSlot*n) + float64((refCP0+(symbolsPerSlot-1)*refCP)*n)/refFFTSize
}

// symbolStart returns the offset of the useful part of symbol l (0..13) in
// a subframe. Odd symbols start between samples on the 64-point grid.
func symbolStart(n, l int) float64 {
	slot, sym := l/symbolsPerSlot, l%symbolsPerSlot
	start := float64(slot)*slotLen(n) + cpLen(n, 0)
	if sym > 0 {
		start += float64(sym) * (float64(n) + cpLen(n, 1))
	}
	return start
}

// carrier maps sequence index 0..61 to its signed subcarrier, skipping DC.
func carrier(idx int) int {
	if idx < numCarriers/2 {
		return idx - numCarriers/2
	}
	return idx - numCarriers/2 + 1
}

// bin maps a signed subcarrier to its FFT bin.
func bin(k, n int) int {
	return (k + n) % n
}

// splitStart returns the integer and fractional parts of a start offset.
func splitStart(start float64) (int, float64) {
	base := math.Floor(start)
	return int(base), start - base
}
