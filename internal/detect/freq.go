package detect

import (
	"math"
	"math/cmplx"

	"github.com/tphakala/go-lte-sync/internal/iq"
	"github.com/tphakala/go-lte-sync/internal/lte"
)

const (
	// syncRate is the sync view sample rate in Hz.
	syncRate = lte.SyncSubframeLen * 1000

	// subcarrierSpacing is the OFDM subcarrier spacing in Hz, the sample
	// rate over the FFT size of every view.
	subcarrierSpacing = syncRate / lte.SyncFFTSize

	// samplesPerBin is the view length of one FFT point per subframe.
	samplesPerBin = lte.SyncSubframeLen / lte.SyncFFTSize
)

// CPEstimator estimates the carrier frequency offset of an aligned subframe
// from the phase advance between every cyclic prefix and the end of its
// symbol. Views may be at any rate whose subframe length is a multiple of
// 15 samples, typically the 1.92 Msps broadcast view. The unambiguous range
// is ±7.5 kHz.
type CPEstimator struct{}

// NewCPEstimator returns a cyclic prefix frequency estimator.
func NewCPEstimator() *CPEstimator { return &CPEstimator{} }

// Estimate returns the carrier offset in Hz. ok is false for a silent
// subframe or when no view has a usable length.
func (e *CPEstimator) Estimate(views []iq.Vector) (hz float64, ok bool) {
	var acc complex128
	for _, v := range views {
		if v.Len() == 0 || v.Len()%samplesPerBin != 0 {
			continue
		}
		n := v.Len() / samplesPerBin
		for l := range symbolsPerSlot * slotsPerSub {
			start := symbolStart(n, l)
			lo := int(math.Ceil(start - cpLen(n, l)))
			hi := int(math.Ceil(start))
			for k := lo; k < hi && k+n < v.Len(); k++ {
				acc += cmplx.Conj(v.At(k)) * v.At(k+n)
			}
		}
	}

	if acc == 0 {
		return 0, false
	}
	// A lag of one FFT length is one subcarrier period at every rate.
	return cmplx.Phase(acc) * subcarrierSpacing / (2 * math.Pi), true
}
