package detect

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/tphakala/go-lte-sync/internal/iq"
)

// ofdm modulates and demodulates the 62 synchronization subcarriers of one
// symbol on an n-point grid.
type ofdm struct {
	n    int
	fft  *fourier.CmplxFFT
	time []complex128
	freq []complex128
}

func newOFDM(n int) *ofdm {
	return &ofdm{
		n:    n,
		fft:  fourier.NewCmplxFFT(n),
		time: make([]complex128, n),
		freq: make([]complex128, n),
	}
}

// rotation returns the phase term of subcarrier k delayed by frac samples.
func (o *ofdm) rotation(k int, frac float64) complex128 {
	return cmplx.Exp(complex(0, -2*math.Pi*float64(k)*frac/float64(o.n)))
}

// demod returns the synchronization subcarriers of the symbol whose useful
// part starts at start in v. The fractional part of start is removed as a
// linear phase.
func (o *ofdm) demod(dst *[numCarriers]complex128, v iq.Vector, start float64) {
	base, frac := splitStart(start)
	v.Complex(o.time, base)
	o.freq = o.fft.Coefficients(o.freq, o.time)

	for idx := range numCarriers {
		k := carrier(idx)
		y := o.freq[bin(k, o.n)]
		if frac != 0 {
			y /= o.rotation(k, frac)
		}
		dst[idx] = y
	}
}

// modulate adds the symbol carrying d, scaled to energy gain² over its
// useful part, to v with its cyclic prefix of cp samples. Samples outside v
// are dropped.
func (o *ofdm) modulate(v iq.Vector, d *[numCarriers]complex128, start, cp, gain float64) {
	base, frac := splitStart(start)

	clear(o.freq)
	for idx := range numCarriers {
		k := carrier(idx)
		o.freq[bin(k, o.n)] = d[idx] * o.rotation(k, frac)
	}
	o.time = o.fft.Sequence(o.time, o.freq)

	scale := complex(gain/math.Sqrt(float64(o.n*numCarriers)), 0)
	lo := int(math.Ceil(start - cp))
	hi := int(math.Ceil(start + float64(o.n)))
	for s := max(lo, 0); s < min(hi, v.Len()); s++ {
		m := ((s-base)%o.n + o.n) % o.n
		v.Set(s, v.At(s)+o.time[m]*scale)
	}
}

// replica returns the unit energy time domain symbol carrying d.
func (o *ofdm) replica(d *[numCarriers]complex128) []complex128 {
	v := iq.NewVector(o.n)
	o.modulate(v, d, 0, 0, 1)

	h := make([]complex128, o.n)
	v.Complex(h, 0)
	return h
}
