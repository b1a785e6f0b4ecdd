package lte

import "fmt"

// Time is a position in the cell's frame structure.
type Time struct {
	Frame    int // System frame number, 0..1023
	Subframe int // 0..9
}

// Advance moves to the next subframe. The frame counter increments when the
// subframe wraps to 0.
func (t *Time) Advance() {
	t.Subframe = (t.Subframe + 1) % SubframesPerFrame
	if t.Subframe == 0 {
		t.Frame = (t.Frame + 1) % FrameWrap
	}
}

// HasPSS reports whether the subframe carries PSS and SSS.
func (t Time) HasPSS() bool {
	return t.Subframe == PSSSubframe0 || t.Subframe == PSSSubframe5
}

// HasBroadcast reports whether the subframe carries the PBCH.
func (t Time) HasBroadcast() bool {
	return t.Subframe == BroadcastSubframe
}

func (t Time) String() string {
	return fmt.Sprintf("%d.%d", t.Frame, t.Subframe)
}
