package lte

// Frame structure
const (
	SubframesPerFrame = 10   // Subframes in one radio frame
	FrameWrap         = 1024 // System frame number modulus
	PSSSubframe0      = 0    // First half-frame PSS/SSS subframe
	PSSSubframe5      = 5    // Second half-frame PSS/SSS subframe
	BroadcastSubframe = 0    // PBCH is carried in subframe 0
)

// Synchronization view numerology (64-point grid, 0.96 Msps).
const (
	SyncFFTSize      = 64                           // FFT size of the sync view
	SyncSlotLen      = 480                          // Samples per slot in the sync view
	SyncCP0Len       = 5                            // First-symbol cyclic prefix in the sync view
	SyncCPLen        = 4                            // Remaining cyclic prefixes (rounded)
	SyncSubframeLen  = 2 * SyncSlotLen              // Sync view samples per subframe
	SyncHalfFrameLen = 10 * SyncSlotLen             // PSS repetition period in the sync view
	PSSTarget        = SyncSlotLen - SyncCP0Len - 1 // Expected PSS peak index
	PSSWindow        = 4                            // Exclusive ± window around PSSTarget
	BroadcastViewLen = 1920                         // PBCH view samples per subframe (6 RB rate)
)

// Base rate numerology.
const (
	baseSubframeLen = 30720 // Samples per subframe at 30.72 Msps
	baseRate        = 30.72e6
	syncDecimation  = 32 // Base rate to sync view
	fft1536Num      = 3  // 1536 family numerator against the 2048 family
	fft1536Den      = 4  // 1536 family denominator against the 2048 family
)

// Timing search and fine-timing constants.
const (
	FineInvalid  = 9999 // Marks a cycle with no fine timing measurement
	FineBias     = 32   // Fine phase bias applied before the per-bandwidth table
	CoarseWindow = 5    // Coarse offsets within ± this use direct scaling
)

// Physical layer cell identity ranges.
const (
	NumSectors    = 3   // N_ID_2 values
	NumGroups     = 168 // N_ID_1 values
	InvalidCellID = -1
)
