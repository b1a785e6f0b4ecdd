package lte

import "fmt"

// CellID is the physical layer cell identity split into its sector (N_ID_2,
// from the PSS) and group (N_ID_1, from the SSS) components.
type CellID struct {
	Sector int
	Group  int
}

// ID returns the combined physical cell identity 3*N_ID_1 + N_ID_2.
func (c CellID) ID() int {
	return NumSectors*c.Group + c.Sector
}

// CellFromID splits a combined physical cell identity.
func CellFromID(id int) CellID {
	return CellID{Sector: id % NumSectors, Group: id / NumSectors}
}

func (c CellID) String() string {
	return fmt.Sprintf("%d (N_ID_1=%d, N_ID_2=%d)", c.ID(), c.Group, c.Sector)
}

// PHICHGroups is the Ng parameter signalled in the MIB.
type PHICHGroups int

// Ng values.
const (
	NgSixth PHICHGroups = iota
	NgHalf
	NgOne
	NgTwo
)

var ngNames = [...]string{NgSixth: "1/6", NgHalf: "1/2", NgOne: "1", NgTwo: "2"}

func (g PHICHGroups) String() string {
	if g < 0 || int(g) >= len(ngNames) {
		return fmt.Sprintf("PHICHGroups(%d)", int(g))
	}
	return ngNames[g]
}

// MIB is the master information block carried on the PBCH.
type MIB struct {
	Bandwidth   Bandwidth
	Antennas    int
	PHICHGroups PHICHGroups
	Frame       int
}
