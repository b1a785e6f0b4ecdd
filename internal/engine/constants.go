package engine

// Rational resampler constants.
const (
	// MaxOutputLen bounds the precomputed commutator path and therefore the
	// largest output block a single Rotate call may produce.
	MaxOutputLen = 4096 * 8

	// historyGrowth is extra capacity reserved in the work buffers so a
	// slightly longer block does not force a reallocation.
	historyGrowth = 2
)

// FFT correlation constants.
const (
	// Default FFT block size (power of 2 for efficiency)
	defaultFFTBlockSize = 256
)
