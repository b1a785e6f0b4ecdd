package radio

const (
	minRingCapacity = 1 << 12 // Smallest accepted ring, in samples

	// DefaultRingSubframes is the ring depth in subframes used when the
	// caller does not size the rings.
	DefaultRingSubframes = 64

	sc16Bytes = 4 // Bytes per complex sc16 sample per channel
)

const maxDatagram = 65536 // Largest UDP payload read
