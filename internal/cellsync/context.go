package cellsync

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/tphakala/go-lte-sync/internal/lte"
)

// ErrControl is returned for invalid control inputs.
var ErrControl = errors.New("cellsync: invalid control input")

// Context is the mutable state of one receiver's synchronization. The
// machine is its only writer apart from the control inputs (subframe modes
// and RNTI), which may be changed from any goroutine.
type Context struct {
	State State
	Time  lte.Time

	// Timing measured this cycle, consumed by the next subframe read.
	Coarse int
	Fine   int

	// Sector is the candidate N_ID_2 from the PSS search.
	Sector int

	// Cell is the detected identity; MIB the last decoded broadcast.
	Cell lte.CellID
	MIB  lte.MIB

	cellID int // identity the references were last generated for

	commonMiss    int
	broadcastMiss int
	timingMiss    int
	identityMiss  int

	freq freqAverager

	modes [lte.SubframesPerFrame]atomic.Int32
	rnti  atomic.Uint32
}

// NewContext returns a context searching for the PSS, with every subframe
// enabled and the broadcast RNTI.
func NewContext() *Context {
	c := &Context{}
	c.Reset()
	for sf := range c.modes {
		c.modes[sf].Store(int32(SubframeAll))
	}
	c.rnti.Store(defaultRNTI)
	return c
}

// Reset returns to the PSS search and forgets the cell. Control inputs are
// kept.
func (c *Context) Reset() {
	c.State = PSSSync
	c.Time = lte.Time{}
	c.Coarse, c.Fine = 0, 0
	c.Sector = 0
	c.Cell = lte.CellID{}
	c.MIB = lte.MIB{}
	c.cellID = lte.InvalidCellID
	c.clearMisses()
	c.freq.reset()
}

func (c *Context) clearMisses() {
	c.commonMiss = 0
	c.broadcastMiss = 0
	c.timingMiss = 0
	c.identityMiss = 0
}

// TakeTiming returns the timing measured by the last cycle and clears it.
// tracking reports whether the state uses native-rate scaling for small
// offsets.
func (c *Context) TakeTiming() (coarse, fine int, tracking bool) {
	coarse, fine = c.Coarse, c.Fine
	c.Coarse, c.Fine = 0, 0
	return coarse, fine, c.State.Tracking()
}

// SetSubframeMode sets the dispatch mode of subframe number sf.
func (c *Context) SetSubframeMode(sf int, mode SubframeMode) error {
	if sf < 0 || sf >= lte.SubframesPerFrame {
		return fmt.Errorf("%w: subframe %d", ErrControl, sf)
	}
	if mode < SubframeOff || mode >= numSubframeModes {
		return fmt.Errorf("%w: mode %d", ErrControl, mode)
	}
	c.modes[sf].Store(int32(mode))
	return nil
}

// SubframeMode returns the dispatch mode of subframe number sf.
func (c *Context) SubframeMode(sf int) SubframeMode {
	return SubframeMode(c.modes[sf].Load())
}

// SetRNTI sets the radio network temporary identifier stamped on work.
func (c *Context) SetRNTI(rnti uint16) { c.rnti.Store(uint32(rnti)) }

// RNTI returns the tracked radio network temporary identifier.
func (c *Context) RNTI() uint16 { return uint16(c.rnti.Load()) }

// Enabled reports whether the subframe at t is dispatched for decoding.
func (c *Context) Enabled(t lte.Time) bool {
	switch c.SubframeMode(t.Subframe) {
	case SubframeAll:
		return true
	case SubframeEven:
		return t.Frame%2 == 0
	case SubframeOdd:
		return t.Frame%2 == 1
	}
	return false
}

// freqAverager is a fixed-window mean of frequency estimates.
type freqAverager struct {
	samples []float64
	n       int
}

// add appends hz and, once size estimates have accumulated, returns their
// mean and empties the window.
func (f *freqAverager) add(hz float64, size int) (float64, bool) {
	if len(f.samples) != size {
		f.samples = make([]float64, size)
		f.n = 0
	}

	f.samples[f.n] = hz
	f.n++
	if f.n < size {
		return 0, false
	}

	var sum float64
	for _, s := range f.samples {
		sum += s
	}
	f.n = 0
	return sum / float64(size), true
}

func (f *freqAverager) reset() { f.n = 0 }

func (f *freqAverager) pending() int { return f.n }
