// Package timing converts sync-view timing measurements into native-rate
// sample corrections for the subframe reader.
package timing

import (
	"errors"

	"github.com/tphakala/go-lte-sync/internal/lte"
)

// ErrNoTiming reports a cycle without a fine timing measurement. Resolve
// still returns the -1 sample slip the reader applies in that case.
var ErrNoTiming = errors.New("timing: no fine timing measurement")

// noTimingSlip is the correction applied when the detector produced nothing.
const noTimingSlip = -1

// Resolve returns the native-rate sample correction for a coarse offset and
// fine phase measured in the sync view.
//
// Coarse offsets of 0 or 1 with a nonzero fine phase are resolved against
// the per-bandwidth fine thresholds. Other small coarse offsets are halved
// before lock and scaled to the native rate while tracking. Anything larger
// is an absolute peak position, corrected relative to the expected PSS
// boundary.
func Resolve(coarse, fine int, tracking bool, bw lte.Bandwidth) (int, error) {
	if fine == lte.FineInvalid {
		return noTimingSlip, ErrNoTiming
	}

	scale := bw.SyncQ()

	switch {
	case fine != 0 && (coarse == 0 || coarse == 1):
		return nudge(coarse, fine+lte.FineBias, bw), nil
	case coarse >= -lte.CoarseWindow && coarse <= lte.CoarseWindow:
		if !tracking {
			return coarse / 2, nil
		}
		return coarse * scale, nil
	case coarse != 0:
		return (coarse - lte.PSSTarget) * scale, nil
	}

	return 0, nil
}

// nudge decides the single sample correction from the biased fine phase.
func nudge(coarse, fine int, bw lte.Bandwidth) int {
	low, high := bw.FineThresholds()
	if coarse == 0 {
		if fine < low {
			return -1
		}
		return 0
	}
	if fine >= high {
		return 1
	}
	return 0
}
