package radio

import (
	"errors"
	"fmt"

	"github.com/tphakala/go-lte-sync/internal/tsbuf"
)

// Sentinel errors.
var (
	// ErrOverflow reports that the radio overran unread samples. The ring
	// stays consistent and the stream continues.
	ErrOverflow = tsbuf.ErrOverflow

	// ErrConfig is returned for sources and readers that cannot be built.
	ErrConfig = errors.New("radio: invalid configuration")
)

// FaultKind classifies a radio fault.
type FaultKind int

// Fault kinds.
const (
	// FaultTimestamp is a non-monotonic stream timestamp. The timeline must
	// be restarted.
	FaultTimestamp FaultKind = iota

	// FaultUnderrun is a subframe that could not be pulled from the ring,
	// typically because an overflow dropped it. The timeline must be
	// restarted.
	FaultUnderrun

	// FaultStream is a failure of the sample stream itself, including its
	// end. It is not recoverable.
	FaultStream
)

func (k FaultKind) String() string {
	switch k {
	case FaultTimestamp:
		return "timestamp"
	case FaultUnderrun:
		return "underrun"
	case FaultStream:
		return "stream"
	}
	return fmt.Sprintf("FaultKind(%d)", int(k))
}

// Fault is a radio failure escalated to the receiver's supervisor.
type Fault struct {
	Kind FaultKind
	TS   int64 // timestamp involved, if any
	Last int64 // previous timestamp for FaultTimestamp
	Err  error
}

func (f *Fault) Error() string {
	switch f.Kind {
	case FaultTimestamp:
		return fmt.Sprintf("radio: non-monotonic timestamp %d after %d", f.TS, f.Last)
	case FaultUnderrun:
		return fmt.Sprintf("radio: subframe at %d unavailable: %v", f.TS, f.Err)
	}
	return fmt.Sprintf("radio: %s fault: %v", f.Kind, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

// Recoverable reports whether restarting the timeline clears the fault.
func (f *Fault) Recoverable() bool { return f.Kind != FaultStream }

// IsRecoverable reports whether err carries a recoverable Fault.
func IsRecoverable(err error) bool {
	var f *Fault
	return errors.As(err, &f) && f.Recoverable()
}
