package detect

import (
	"math"
	"math/cmplx"

	"github.com/tphakala/go-lte-sync/internal/cellsync"
	"github.com/tphakala/go-lte-sync/internal/iq"
	"github.com/tphakala/go-lte-sync/internal/lte"
)

// SSS detection defaults.
const (
	DefaultSSSAverage   = 1
	DefaultSSSThreshold = 0.4
)

// SSSConfig holds the SSS detector parameters. Zero values select the
// defaults.
type SSSConfig struct {
	// Average is the number of observations combined per decision.
	Average int

	// Threshold is the minimum normalized match of the winning hypothesis.
	Threshold float64
}

// SSS detects the cell group and half-frame from the secondary
// synchronization signal, using the PSS of the same half-frame as channel
// reference. It is not safe for concurrent use.
type SSS struct {
	cfg  SSSConfig
	grid *ofdm

	pss [lte.NumSectors][numCarriers]complex128

	// Accumulated metric per (group, half-frame) over the current run.
	acc    [lte.NumGroups][2]float64
	n      int
	sector int

	eq     [numCarriers]complex128
	pbins  [numCarriers]complex128
	sbins  [numCarriers]complex128
	hyp    [numCarriers]float64
	energy float64
}

// NewSSS returns an SSS detector.
func NewSSS(cfg SSSConfig) *SSS {
	if cfg.Average <= 0 {
		cfg.Average = DefaultSSSAverage
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultSSSThreshold
	}

	s := &SSS{cfg: cfg, grid: newOFDM(lte.SyncFFTSize), sector: -1}
	for sec := range lte.NumSectors {
		s.pss[sec] = pssSequence(sec)
	}
	return s
}

// equalize demodulates PSS and SSS of every channel and combines the SSS
// subcarriers weighted by the PSS channel estimate.
func (s *SSS) equalize(views []iq.Vector, sector int) {
	clear(s.eq[:])
	s.energy = 0

	pStart := symbolStart(lte.SyncFFTSize, pssSymbol)
	sStart := symbolStart(lte.SyncFFTSize, sssSymbol)
	for _, v := range views {
		s.grid.demod(&s.pbins, v, pStart)
		s.grid.demod(&s.sbins, v, sStart)
		for k := range numCarriers {
			h := s.pbins[k] * cmplx.Conj(s.pss[sector][k])
			z := s.sbins[k] * cmplx.Conj(h)
			s.eq[k] += z
		}
	}
	for _, z := range s.eq {
		s.energy += real(z)*real(z) + imag(z)*imag(z)
	}
}

// match returns the complex correlation of the equalized subcarriers with
// one hypothesis.
func (s *SSS) match(group, sector, half int) complex128 {
	sssSequence(&s.hyp, group, sector, half)
	var acc complex128
	for k, z := range s.eq {
		acc += z * complex(s.hyp[k], 0)
	}
	return acc
}

// Detect accumulates one observation and, once enough are combined,
// decides the cell group and half-frame. A found match carries the carrier
// offset measured between the SSS and PSS symbols.
func (s *SSS) Detect(views []iq.Vector, sector int) cellsync.SSSMatch {
	if !validSector(sector) || len(views) == 0 {
		return cellsync.SSSMatch{Status: cellsync.SSSNoMatch}
	}
	if sector != s.sector {
		s.Reset()
		s.sector = sector
	}

	s.equalize(views, sector)
	if s.energy > 0 {
		norm := numCarriers * s.energy
		for g := range lte.NumGroups {
			for half := range 2 {
				a := s.match(g, sector, half)
				s.acc[g][half] += (real(a)*real(a) + imag(a)*imag(a)) / norm
			}
		}
	}
	s.n++

	if s.n < s.cfg.Average {
		return cellsync.SSSMatch{Status: cellsync.SSSAveraging}
	}

	bestG, bestH, best := 0, 0, -1.0
	for g := range lte.NumGroups {
		for half := range 2 {
			if s.acc[g][half] > best {
				bestG, bestH, best = g, half, s.acc[g][half]
			}
		}
	}
	avg := best / float64(s.n)
	s.Reset()
	s.sector = sector

	if avg < s.cfg.Threshold {
		return cellsync.SSSMatch{Status: cellsync.SSSNoMatch}
	}

	return cellsync.SSSMatch{
		Status:     cellsync.SSSFound,
		Group:      bestG,
		HalfFrame:  bestH * lte.PSSSubframe5,
		FreqOffset: s.offset(s.match(bestG, sector, bestH)),
	}
}

// offset converts the SSS to PSS phase rotation of the last observation
// into a carrier offset in Hz. The rotation accrues between the starts of
// the two demodulation windows.
func (s *SSS) offset(a complex128) float64 {
	if a == 0 {
		return 0
	}
	pBase, _ := splitStart(symbolStart(lte.SyncFFTSize, pssSymbol))
	sBase, _ := splitStart(symbolStart(lte.SyncFFTSize, sssSymbol))
	gap := float64(pBase - sBase)
	return -cmplx.Phase(a) * syncRate / (2 * math.Pi * gap)
}

// Reset discards accumulated observations.
func (s *SSS) Reset() {
	s.acc = [lte.NumGroups][2]float64{}
	s.n = 0
	s.sector = -1
}
