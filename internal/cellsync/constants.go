package cellsync

// Detection and demotion thresholds.
const (
	// DefaultThreshold is the PSS search magnitude that counts as a
	// detection. The magnitude is the absolute energy of the matched PSS
	// symbol in sync view units (sc16 counts / 127) summed over channels,
	// so the threshold assumes a receive gain that puts the PSS near 476
	// sc16 counts RMS or above.
	DefaultThreshold = 900.0

	// DefaultFreqWindow is the number of frequency estimates averaged
	// before a correction is applied.
	DefaultFreqWindow = 200

	sssMissLimit       = 4   // SSS-Sync misses that demote (reached)
	commonMissLimit    = 10  // PBCH-Sync misses that demote (exceeded)
	broadcastMissLimit = 10  // MIB decode failures that demote (exceeded)
	timingMissLimit    = 100 // PDSCH timing misses that demote (exceeded)
	identityMissLimit  = 5   // Inconsistent SSS detections that demote (exceeded)
	pss2MissLimit      = 1   // PSS-Sync2 misses tolerated

	defaultRNTI = 0xffff
)

// Miss kinds reported to metrics.
const (
	missPSSFreq  = "pss_frequency"
	missPSSTime  = "pss_timing"
	missSSS      = "sss"
	missMIB      = "mib"
	missTiming   = "timing"
	missIdentity = "identity"
)
