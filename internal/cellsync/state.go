package cellsync

import "fmt"

// State is the synchronization state.
type State int

// Synchronization states, in order of increasing precision.
const (
	PSSSync   State = iota // Searching for the primary sync signal
	PSSSync2               // Confirming sector and timing at subframe 0
	SSSSync                // Resolving cell group and half-frame
	PBCHSync               // Re-verifying timing before a broadcast decode
	PBCH                   // Decoding the master information block
	PDSCHSync              // Tracking, timing not yet re-verified at subframe 5
	PDSCH                  // Tracking and dispatching data subframes
)

var stateNames = [...]string{
	PSSSync:   "PSS-Sync",
	PSSSync2:  "PSS-Sync2",
	SSSSync:   "SSS-Sync",
	PBCHSync:  "PBCH-Sync",
	PBCH:      "PBCH-Decode",
	PDSCHSync: "PDSCH-Sync",
	PDSCH:     "PDSCH-Decode",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Tracking reports whether the state belongs to the data tracking phase.
func (s State) Tracking() bool {
	return s == PDSCHSync || s == PDSCH
}

// Mode selects what the machine does once the cell identity is known.
type Mode int

const (
	// Acquisition stops at the first decoded MIB and reports it.
	Acquisition Mode = iota

	// Tracking decodes the MIB once, then keeps timing and dispatches
	// enabled subframes to the decoders.
	Tracking
)

func (m Mode) String() string {
	switch m {
	case Acquisition:
		return "acquisition"
	case Tracking:
		return "tracking"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// SubframeMode controls whether a subframe number is dispatched for
// decoding.
type SubframeMode int32

// Subframe enable modes.
const (
	SubframeOff  SubframeMode = iota // Never
	SubframeAll                      // Every frame
	SubframeEven                     // Even frames only
	SubframeOdd                      // Odd frames only
	numSubframeModes
)

func (m SubframeMode) String() string {
	switch m {
	case SubframeOff:
		return "off"
	case SubframeAll:
		return "all"
	case SubframeEven:
		return "even"
	case SubframeOdd:
		return "odd"
	}
	return fmt.Sprintf("SubframeMode(%d)", int(m))
}

// ParseSubframeMode parses the names produced by SubframeMode.String.
func ParseSubframeMode(s string) (SubframeMode, error) {
	for m := SubframeOff; m < numSubframeModes; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown subframe mode %q", ErrControl, s)
}
