// Package lte holds the downlink numerology that timing recovery depends on:
// supported channel bandwidths, frame/subframe counters and cell identity.
package lte

import (
	"errors"
	"fmt"
	"math"
)

// ErrBandwidth is returned for resource block counts outside the LTE set.
var ErrBandwidth = errors.New("unsupported bandwidth")

// Bandwidth is a supported downlink channel bandwidth, identified by its
// resource block count.
type Bandwidth int

// Supported bandwidths.
const (
	RB6 Bandwidth = iota
	RB15
	RB25
	RB50
	RB75
	RB100
)

// bandwidthInfo is the associated data of a Bandwidth value.
type bandwidthInfo struct {
	rbs      int
	decim    int  // native rate divisor relative to 30.72 Msps
	fft1536  bool // native FFT belongs to the 1536-point family
	fftSize  int  // native FFT size
	fineLow  int  // biased fine phase below which coarse 0 slips -1
	fineHigh int  // biased fine phase at or above which coarse 1 slips +1
}

var bandwidths = [...]bandwidthInfo{
	RB6:   {rbs: 6, decim: 16, fftSize: 128, fineLow: 22, fineHigh: 17},
	RB15:  {rbs: 15, decim: 8, fftSize: 256, fineLow: 22, fineHigh: 15},
	RB25:  {rbs: 25, decim: 4, fft1536: true, fftSize: 384, fineLow: 26, fineHigh: 14},
	RB50:  {rbs: 50, decim: 2, fft1536: true, fftSize: 768, fineLow: 29, fineHigh: 10},
	RB75:  {rbs: 75, decim: 2, fftSize: 1024, fineLow: 30, fineHigh: 10},
	RB100: {rbs: 100, decim: 1, fft1536: true, fftSize: 1536, fineLow: 32, fineHigh: 7},
}

// Bandwidths lists every supported bandwidth in ascending order.
func Bandwidths() []Bandwidth {
	return []Bandwidth{RB6, RB15, RB25, RB50, RB75, RB100}
}

// ParseBandwidth maps a resource block count to a Bandwidth.
func ParseBandwidth(rbs int) (Bandwidth, error) {
	for i := range bandwidths {
		if bandwidths[i].rbs == rbs {
			return Bandwidth(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %d resource blocks", ErrBandwidth, rbs)
}

// BandwidthForRate returns the bandwidth whose native sample rate is rate.
func BandwidthForRate(rate float64) (Bandwidth, error) {
	for _, b := range Bandwidths() {
		if math.Abs(b.SampleRate()-rate) < 1 {
			return b, nil
		}
	}
	return 0, fmt.Errorf("%w: no bandwidth samples at %.0f Hz", ErrBandwidth, rate)
}

// Valid reports whether b is one of the supported values.
func (b Bandwidth) Valid() bool {
	return b >= RB6 && b <= RB100
}

func (b Bandwidth) info() bandwidthInfo {
	if !b.Valid() {
		panic(fmt.Sprintf("lte: invalid bandwidth %d", int(b)))
	}
	return bandwidths[b]
}

// ResourceBlocks returns the resource block count.
func (b Bandwidth) ResourceBlocks() int { return b.info().rbs }

// Decimation returns the divisor of the native rate relative to 30.72 Msps.
func (b Bandwidth) Decimation() int { return b.info().decim }

// FFTSize returns the native OFDM FFT size.
func (b Bandwidth) FFTSize() int { return b.info().fftSize }

// Uses1536 reports whether the native FFT belongs to the 1536-point family.
func (b Bandwidth) Uses1536() bool { return b.info().fft1536 }

// SubframeLen returns the number of native-rate samples in one subframe.
func (b Bandwidth) SubframeLen() int {
	info := b.info()
	n := baseSubframeLen / info.decim
	if info.fft1536 {
		n = n * fft1536Num / fft1536Den
	}
	return n
}

// FrameLen returns the number of native-rate samples in one frame.
func (b Bandwidth) FrameLen() int { return SubframesPerFrame * b.SubframeLen() }

// SampleRate returns the native sample rate in samples per second.
func (b Bandwidth) SampleRate() float64 {
	return float64(b.SubframeLen()) * baseRate / baseSubframeLen
}

// SyncQ returns the decimation from the native rate to the sync view.
// It is also the number of native samples per sync view sample, which is
// what converts sync-rate timing errors into native-rate adjustments.
func (b Bandwidth) SyncQ() int {
	info := b.info()
	if info.fft1536 {
		return syncDecimation * fft1536Num / fft1536Den / info.decim
	}
	return syncDecimation / info.decim
}

// BroadcastQ returns the decimation from the native rate to the broadcast view.
func (b Bandwidth) BroadcastQ() int { return b.SyncQ() / 2 }

// FineThresholds returns the biased fine-phase thresholds used to nudge
// timing by one native sample when the coarse offset is 0 or 1.
func (b Bandwidth) FineThresholds() (low, high int) {
	info := b.info()
	return info.fineLow, info.fineHigh
}

func (b Bandwidth) String() string {
	if !b.Valid() {
		return fmt.Sprintf("Bandwidth(%d)", int(b))
	}
	return fmt.Sprintf("%d RB", b.info().rbs)
}
