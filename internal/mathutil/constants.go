package mathutil

// Numerical stability thresholds
const (
	sincZeroThreshold = 1e-9 // |x| below which sinc(x) is taken as 1
)
