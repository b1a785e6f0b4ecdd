package radio

import (
	"math"
	"math/cmplx"
)

// nco removes a carrier offset from sc16 samples. The phase is tied to the
// stream timestamp, so corrections stay continuous across packets, gaps and
// frequency changes.
type nco struct {
	rate  float64
	hz    float64
	phase float64 // radians at sample ts
	ts    int64
}

func newNCO(rate float64) nco { return nco{rate: rate} }

// advance moves the reference phase to timestamp ts.
func (o *nco) advance(ts int64) {
	if o.hz != 0 {
		o.phase -= 2 * math.Pi * o.hz * float64(ts-o.ts) / o.rate
		o.phase = math.Remainder(o.phase, 2*math.Pi)
	}
	o.ts = ts
}

// shift adds hz to the correction from timestamp ts on.
func (o *nco) shift(hz float64, ts int64) {
	o.advance(ts)
	o.hz += hz
}

func (o *nco) reset() {
	o.hz, o.phase = 0, 0
}

// active reports whether mixing changes the samples.
func (o *nco) active() bool { return o.hz != 0 || o.phase != 0 }

// mix writes src rotated by the correction into dst. src starts at
// timestamp ts; the reference phase is left at ts.
func (o *nco) mix(dst, src []int16, ts int64) {
	o.advance(ts)
	if !o.active() {
		copy(dst, src)
		return
	}

	step := cmplx.Rect(1, -2*math.Pi*o.hz/o.rate)
	p := cmplx.Rect(1, o.phase)
	for k := 0; k+1 < len(src); k += 2 {
		v := complex(float64(src[k]), float64(src[k+1])) * p
		dst[k] = saturate(real(v))
		dst[k+1] = saturate(imag(v))
		p *= step
	}
}

func saturate(v float64) int16 {
	v = math.Round(v)
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}
