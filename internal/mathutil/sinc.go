// Package mathutil holds the small numeric helpers shared by filter design and
// rate planning.
package mathutil

import "math"

// Sinc returns the normalized sinc function sin(πx)/(πx).
func Sinc(x float64) float64 {
	if math.Abs(x) < sincZeroThreshold {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

// GCD returns the greatest common divisor of a and b.
func GCD(a, b int) int {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// ReduceRatio returns p/q in lowest terms.
func ReduceRatio(p, q int) (int, int) {
	g := GCD(p, q)
	if g == 0 {
		return p, q
	}
	return p / g, q / g
}
