package filter

const (
	// Blackman-Harris 4-term window coefficients
	bhA0 = 0.35875
	bhA1 = 0.48829
	bhA2 = 0.14128
	bhA3 = 0.01168

	// Prototype limits
	minTapsPerPhase = 2
	maxPrototypeLen = 1 << 20

	// Frequency response calculation
	defaultResponsePoints   = 512
	frequencyNyquistDivisor = 2
)
