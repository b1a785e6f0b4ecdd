package subframe

const (
	// OffsetLimit is the timing search margin kept in the look-back history
	// beyond half the filter length.
	OffsetLimit = 64

	// DefaultTaps is the resampler filter length per partition.
	DefaultTaps = 384

	// minTaps keeps both neighbours of the interpolated seam sample inside
	// the history head.
	minTaps = 4

	// convertScale maps sc16 samples to the float range the detectors expect.
	convertScale = 1.0 / 127.0
)
