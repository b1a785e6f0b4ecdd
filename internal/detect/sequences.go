package detect

import (
	"math"
	"math/cmplx"

	"github.com/tphakala/go-lte-sync/internal/lte"
)

// pssRoots are the Zadoff-Chu roots of sectors 0, 1 and 2.
var pssRoots = [lte.NumSectors]int{25, 29, 34}

// pssSequence returns the frequency domain PSS of a sector.
func pssSequence(sector int) [numCarriers]complex128 {
	u := float64(pssRoots[sector])
	var d [numCarriers]complex128
	for n := range numCarriers {
		m := float64(n)
		if n >= numCarriers/2 {
			m++
		}
		d[n] = cmplx.Exp(complex(0, -math.Pi*u*m*(m+1)/63))
	}
	return d
}

// mSequence returns the ±1 sequence of the length-31 LFSR with the given
// feedback taps, seeded with x(4) = 1.
func mSequence(taps ...int) [31]float64 {
	var x [31]int
	x[4] = 1
	for i := 0; i+5 < 31; i++ {
		v := x[i]
		for _, t := range taps {
			v += x[i+t]
		}
		x[i+5] = v % 2
	}

	var s [31]float64
	for i, b := range x {
		s[i] = float64(1 - 2*b)
	}
	return s
}

var (
	sssBase  = mSequence(2)
	sssScram = mSequence(3)
	sssZ     = mSequence(1, 2, 4)
)

// sssIndices returns the cyclic shifts (m0, m1) of cell group group.
func sssIndices(group int) (m0, m1 int) {
	qp := group / 30
	q := (group + qp*(qp+1)/2) / 30
	mp := group + q*(q+1)/2
	m0 = mp % 31
	m1 = (m0 + mp/31 + 1) % 31
	return m0, m1
}

// sssSequence writes the ±1 SSS of a cell and half-frame (0 for subframe
// 0, 1 for subframe 5) into dst.
func sssSequence(dst *[numCarriers]float64, group, sector, half int) {
	m0, m1 := sssIndices(group)
	if half == 1 {
		m0, m1 = m1, m0
	}
	for n := range numCarriers / 2 {
		s0 := sssBase[(n+m0)%31]
		s1 := sssBase[(n+m1)%31]
		c0 := sssScram[(n+sector)%31]
		c1 := sssScram[(n+sector+3)%31]
		z1 := sssZ[(n+m0%8)%31]

		dst[2*n] = s0 * c0
		dst[2*n+1] = s1 * c1 * z1
	}
}
