package cellsync

import (
	"context"
	"errors"

	"github.com/tphakala/go-lte-sync/internal/iq"
	"github.com/tphakala/go-lte-sync/internal/lte"
	"github.com/tphakala/go-lte-sync/internal/work"
)

// ErrNoMIB is returned by a MIBDecoder when the broadcast channel did not
// decode. It is counted as a miss, never fatal.
var ErrNoMIB = errors.New("cellsync: MIB not decoded")

// PSSMatch is a primary sync signal measurement in the sync view. Coarse is
// the correlation peak index within the subframe view.
type PSSMatch struct {
	Sector    int
	Coarse    int
	Fine      int // sub-sample phase, biased by lte.FineBias
	Magnitude float64
}

// PSSDetector finds and tracks the primary sync signal.
type PSSDetector interface {
	// Search correlates against every sector and returns the strongest peak.
	Search(views []iq.Vector) PSSMatch

	// Detect identifies the sector in the frequency domain, -1 if none.
	Detect(views []iq.Vector) int

	// Sync correlates against one sector in the time domain.
	Sync(views []iq.Vector, sector int) PSSMatch

	// FineSync is Sync with a sub-sample phase estimate.
	FineSync(views []iq.Vector, sector int) PSSMatch

	// Confirm re-checks the sector with a frequency-offset tolerant detector.
	Confirm(views []iq.Vector, sector int) bool
}

// SSSStatus is the outcome of one secondary sync detection.
type SSSStatus int

const (
	SSSNoMatch   SSSStatus = iota // No sequence matched
	SSSAveraging                  // Still accumulating, no decision yet
	SSSFound                      // Group and half-frame resolved
)

// SSSMatch is a secondary sync signal detection.
type SSSMatch struct {
	Status     SSSStatus
	Group      int     // N_ID_1
	HalfFrame  int     // subframe number of the detected half-frame, 0 or 5
	FreqOffset float64 // measured carrier offset in Hz
}

// SSSDetector resolves the cell group and half-frame.
type SSSDetector interface {
	Detect(views []iq.Vector, sector int) SSSMatch
}

// MIBDecoder decodes the master information block from broadcast views.
type MIBDecoder interface {
	Decode(ctx context.Context, views []iq.Vector, cell lte.CellID) (lte.MIB, error)
}

// FrequencyEstimator measures the residual carrier offset of one subframe.
type FrequencyEstimator interface {
	Estimate(views []iq.Vector) (hz float64, ok bool)
}

// CellConfigurator rebuilds everything derived from the cell identity. It
// is called once per identity change.
type CellConfigurator interface {
	Configure(cell lte.CellID, bw lte.Bandwidth) error
}

// FrontEnd is the frequency control of the radio source.
type FrontEnd interface {
	ShiftFrequency(hz float64)
	ResetFrequency()
}

// BufferPool is the work distribution seen from the sync loop.
type BufferPool interface {
	TryAcquire() (*work.Buffer, bool)
	Submit(b *work.Buffer) error
	Release(b *work.Buffer)
}
