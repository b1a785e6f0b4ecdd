// Package detect implements the synchronization signal detectors of the
// sync view: PSS search and timing, SSS cell group and half-frame
// detection, and cyclic prefix frequency offset estimation. All detectors
// operate on aligned 64-point sync view subframes and combine channels
// non-coherently.
package detect

import (
	"math"
	"math/cmplx"

	"github.com/tphakala/go-lte-sync/internal/cellsync"
	"github.com/tphakala/go-lte-sync/internal/engine"
	"github.com/tphakala/go-lte-sync/internal/iq"
	"github.com/tphakala/go-lte-sync/internal/lte"
)

// PSS detection thresholds on the normalized frequency domain metric.
const (
	DefaultDetectThreshold = 0.2
	confirmMargin          = 2.0
)

// lagBias maps a correlation lag to the reported peak index, so that a PSS
// at its aligned position peaks at lte.PSSTarget.
const lagBias = lte.SyncFFTSize - lte.SyncCP0Len - 1

// fineSteps is the fine timing resolution per sync view sample.
const fineSteps = 2 * lte.FineBias

// PSS detects the primary synchronization signal in sync view subframes.
// It is not safe for concurrent use.
type PSS struct {
	threshold float64

	seq  [lte.NumSectors][numCarriers]complex128
	corr [lte.NumSectors]*engine.Correlator
	grid *ofdm

	signal []complex128
	lags   []complex128
	power  []float64
	bins   [numCarriers]complex128
}

// NewPSS returns a PSS detector. A threshold of zero selects
// DefaultDetectThreshold.
func NewPSS(threshold float64) *PSS {
	if threshold <= 0 {
		threshold = DefaultDetectThreshold
	}

	p := &PSS{
		threshold: threshold,
		grid:      newOFDM(lte.SyncFFTSize),
		signal:    make([]complex128, lte.SyncSubframeLen),
		lags:      make([]complex128, lte.SyncSubframeLen),
		power:     make([]float64, lte.SyncSubframeLen),
	}
	for s := range lte.NumSectors {
		p.seq[s] = pssSequence(s)
		p.corr[s] = engine.NewCorrelator(p.grid.replica(&p.seq[s]))
	}
	return p
}

// correlate fills p.power with the channel-combined correlation power of
// sector s and returns the number of lags.
func (p *PSS) correlate(views []iq.Vector, s int) int {
	n := 0
	for ch, v := range views {
		sig := p.signal[:v.Len()]
		v.Complex(sig, 0)
		n = p.corr[s].Correlate(p.lags, sig)
		for k := range n {
			a := real(p.lags[k])*real(p.lags[k]) + imag(p.lags[k])*imag(p.lags[k])
			if ch == 0 {
				p.power[k] = a
			} else {
				p.power[k] += a
			}
		}
	}
	return n
}

// peak returns the strongest lag and its power.
func (p *PSS) peak(n int) (int, float64) {
	best, mag := 0, -1.0
	for k := range n {
		if p.power[k] > mag {
			best, mag = k, p.power[k]
		}
	}
	return best, mag
}

// Search correlates every sector against the whole subframe and returns
// the strongest peak.
//
// Magnitude is not normalized. The replicas have unit energy, so a clean
// PSS peaks at the energy of its 64 useful samples in the sync view, summed
// over channels. View samples are sc16 counts divided by 127; the default
// search threshold of 900 is met by a PSS symbol of about 3.75 RMS in view
// units (about 476 sc16 counts) on one channel, and scales with receive
// gain.
func (p *PSS) Search(views []iq.Vector) cellsync.PSSMatch {
	p.grow(views)

	var m cellsync.PSSMatch
	m.Magnitude = -1
	for s := range lte.NumSectors {
		lag, mag := p.peak(p.correlate(views, s))
		if mag > m.Magnitude {
			m = cellsync.PSSMatch{Sector: s, Coarse: lag + lagBias, Magnitude: mag}
		}
	}
	return m
}

// Sync returns the correlation peak of one sector.
func (p *PSS) Sync(views []iq.Vector, sector int) cellsync.PSSMatch {
	if !validSector(sector) {
		return cellsync.PSSMatch{Sector: sector, Fine: lte.FineInvalid}
	}
	p.grow(views)

	lag, mag := p.peak(p.correlate(views, sector))
	return cellsync.PSSMatch{Sector: sector, Coarse: lag + lagBias, Magnitude: mag}
}

// FineSync is Sync with a sub-sample timing estimate from the phase slope
// of the PSS subcarriers at the peak. Fine is the PSS position relative to
// the peak in 1/64 sample steps, biased by lte.FineBias.
func (p *PSS) FineSync(views []iq.Vector, sector int) cellsync.PSSMatch {
	if !validSector(sector) {
		return cellsync.PSSMatch{Sector: sector, Fine: lte.FineInvalid}
	}
	p.grow(views)

	lag, mag := p.peak(p.correlate(views, sector))
	m := cellsync.PSSMatch{Sector: sector, Coarse: lag + lagBias, Magnitude: mag, Fine: lte.FineBias}

	var slope complex128
	for _, v := range views {
		if lag+lte.SyncFFTSize > v.Len() {
			continue
		}
		p.grid.demod(&p.bins, v, float64(lag))
		for idx := range numCarriers - 1 {
			if carrier(idx+1)-carrier(idx) != 1 {
				continue
			}
			a := p.bins[idx] * cmplx.Conj(p.seq[sector][idx])
			b := p.bins[idx+1] * cmplx.Conj(p.seq[sector][idx+1])
			slope += b * cmplx.Conj(a)
		}
	}
	if slope == 0 {
		return m
	}

	tau := -cmplx.Phase(slope) * lte.SyncFFTSize / (2 * math.Pi)
	m.Fine = lte.FineBias + int(math.Round(tau*fineSteps))
	m.Fine = min(max(m.Fine, 0), fineSteps-1)
	return m
}

// metrics fills the normalized frequency domain match of every sector,
// assuming the PSS sits at its aligned position.
func (p *PSS) metrics(views []iq.Vector) [lte.NumSectors]float64 {
	var (
		num    [lte.NumSectors]float64
		energy float64
	)
	start := symbolStart(lte.SyncFFTSize, pssSymbol)
	for _, v := range views {
		p.grid.demod(&p.bins, v, start)
		for _, y := range p.bins {
			energy += real(y)*real(y) + imag(y)*imag(y)
		}
		for s := range lte.NumSectors {
			var acc complex128
			for k, y := range p.bins {
				acc += y * cmplx.Conj(p.seq[s][k])
			}
			num[s] += real(acc)*real(acc) + imag(acc)*imag(acc)
		}
	}

	var out [lte.NumSectors]float64
	if energy == 0 {
		return out
	}
	for s := range num {
		out[s] = num[s] / (numCarriers * energy)
	}
	return out
}

// Detect identifies the sector in the frequency domain. It returns -1 if
// no sector matches well enough.
func (p *PSS) Detect(views []iq.Vector) int {
	m := p.metrics(views)
	best := 0
	for s := range m {
		if m[s] > m[best] {
			best = s
		}
	}
	if m[best] < p.threshold {
		return -1
	}
	return best
}

// Confirm reports whether sector dominates the frequency domain match by a
// clear margin.
func (p *PSS) Confirm(views []iq.Vector, sector int) bool {
	if !validSector(sector) {
		return false
	}
	m := p.metrics(views)
	if m[sector] < p.threshold {
		return false
	}
	for s := range m {
		if s != sector && m[sector] < confirmMargin*m[s] {
			return false
		}
	}
	return true
}

// grow sizes the work buffers for the longest view.
func (p *PSS) grow(views []iq.Vector) {
	for _, v := range views {
		if v.Len() > len(p.signal) {
			p.signal = make([]complex128, v.Len())
			p.lags = make([]complex128, v.Len())
			p.power = make([]float64, v.Len())
		}
	}
}

func validSector(s int) bool { return s >= 0 && s < lte.NumSectors }
