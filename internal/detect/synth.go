package detect

import (
	"fmt"

	"github.com/tphakala/go-lte-sync/internal/iq"
	"github.com/tphakala/go-lte-sync/internal/lte"
)

// Synthesizer generates the synchronization signals of a cell on an
// n-point grid. Test fixtures and the synthetic radio source use it.
type Synthesizer struct {
	grid *ofdm
	pss  [lte.NumSectors][numCarriers]complex128
	sss  [numCarriers]complex128
	hyp  [numCarriers]float64
}

// NewSynthesizer returns a synthesizer for an fftSize-point grid. fftSize
// must be a multiple of 64.
func NewSynthesizer(fftSize int) (*Synthesizer, error) {
	if fftSize < lte.SyncFFTSize || fftSize%lte.SyncFFTSize != 0 {
		return nil, fmt.Errorf("detect: unsupported grid size %d", fftSize)
	}
	s := &Synthesizer{grid: newOFDM(fftSize)}
	for sec := range lte.NumSectors {
		s.pss[sec] = pssSequence(sec)
	}
	return s, nil
}

// SubframeLen returns the number of samples in one subframe of the grid.
func (s *Synthesizer) SubframeLen() int {
	return int(slotLen(s.grid.n)) * slotsPerSub
}

// Sync adds the PSS and SSS of cell for subframe 0 or 5 to the subframe
// starting at v[0]. Each symbol carries energy gain² over its useful part.
func (s *Synthesizer) Sync(v iq.Vector, cell lte.CellID, subframe int, gain float64) error {
	if !validSector(cell.Sector) || cell.Group < 0 || cell.Group >= lte.NumGroups {
		return fmt.Errorf("detect: invalid cell %v", cell)
	}
	var half int
	switch subframe {
	case lte.PSSSubframe0:
	case lte.PSSSubframe5:
		half = 1
	default:
		return fmt.Errorf("detect: subframe %d carries no sync signals", subframe)
	}

	n := s.grid.n
	s.grid.modulate(v, &s.pss[cell.Sector], symbolStart(n, pssSymbol), cpLen(n, pssSymbol), gain)

	sssSequence(&s.hyp, cell.Group, cell.Sector, half)
	for k, d := range s.hyp {
		s.sss[k] = complex(d, 0)
	}
	s.grid.modulate(v, &s.sss, symbolStart(n, sssSymbol), cpLen(n, sssSymbol), gain)
	return nil
}
