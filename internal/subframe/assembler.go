// Package subframe assembles one subframe of native-rate samples per radio
// channel into the views the synchronization and decode stages consume.
//
// Per subframe the caller points the assembler at the raw sc16 samples, asks
// for whatever views the current sync state needs, and finishes with Update
// and Reset. Conversion and each view are computed at most once per
// subframe. Update keeps every resampler phase-continuous whether or not its
// view was produced this time.
package subframe

import (
	"errors"
	"fmt"

	"github.com/tphakala/go-lte-sync/internal/engine"
	"github.com/tphakala/go-lte-sync/internal/iq"
	"github.com/tphakala/go-lte-sync/internal/lte"
)

// ErrConfig is returned for assembler parameters that cannot be built.
var ErrConfig = errors.New("subframe: invalid configuration")

// Assembler holds the per-channel subframe buffers and resamplers for one
// bandwidth selection.
type Assembler struct {
	bw     lte.Bandwidth
	chans  int
	taps   int
	length int // native samples per subframe
	hlen   int // look-back history samples

	raw     [][]int16 // current subframe, interleaved sc16
	owned   [][]int16 // assembler-allocated raw buffers
	base    []iq.Vector
	sync    []iq.Vector
	bcast   []iq.Vector
	history [][]int16
	scratch []int16

	syncRes  []*engine.Rational[float32]
	bcastRes []*engine.Rational[float32]

	converted  bool
	syncReady  bool
	bcastReady bool
}

// New creates an assembler for chans channels at bandwidth bw with taps
// filter taps per resampler partition.
func New(chans int, bw lte.Bandwidth, taps int) (*Assembler, error) {
	if chans < 1 {
		return nil, fmt.Errorf("%w: %d channels", ErrConfig, chans)
	}
	if !bw.Valid() {
		return nil, fmt.Errorf("%w: %w", ErrConfig, lte.ErrBandwidth)
	}
	length := bw.SubframeLen()
	if taps < minTaps || taps > length {
		return nil, fmt.Errorf("%w: %d taps for a %d sample subframe", ErrConfig, taps, length)
	}

	a := &Assembler{
		bw:       bw,
		chans:    chans,
		taps:     taps,
		length:   length,
		hlen:     taps/2 + OffsetLimit,
		raw:      make([][]int16, chans),
		owned:    make([][]int16, chans),
		base:     make([]iq.Vector, chans),
		sync:     make([]iq.Vector, chans),
		bcast:    make([]iq.Vector, chans),
		history:  make([][]int16, chans),
		scratch:  make([]int16, 2*length),
		syncRes:  make([]*engine.Rational[float32], chans),
		bcastRes: make([]*engine.Rational[float32], chans),
	}

	for ch := range chans {
		a.owned[ch] = make([]int16, 2*length)
		a.raw[ch] = a.owned[ch]
		a.base[ch] = iq.NewVector(length)
		a.sync[ch] = iq.NewVector(lte.SyncSubframeLen)
		a.bcast[ch] = iq.NewVector(lte.BroadcastViewLen)
		a.history[ch] = make([]int16, 2*a.hlen)

		var err error
		a.syncRes[ch], err = engine.NewRational[float32](1, bw.SyncQ(), taps, 0, 1)
		if err != nil {
			return nil, fmt.Errorf("sync view resampler: %w", err)
		}
		a.bcastRes[ch], err = engine.NewRational[float32](1, bw.BroadcastQ(), taps, 0, 1)
		if err != nil {
			return nil, fmt.Errorf("broadcast view resampler: %w", err)
		}
	}

	return a, nil
}

// Bandwidth returns the bandwidth the assembler was built for.
func (a *Assembler) Bandwidth() lte.Bandwidth { return a.bw }

// Channels returns the number of radio channels.
func (a *Assembler) Channels() int { return a.chans }

// Len returns the number of native-rate samples per subframe.
func (a *Assembler) Len() int { return a.length }

// Raw returns the raw sc16 buffer of channel ch.
func (a *Assembler) Raw(ch int) []int16 { return a.raw[ch] }

// SetRaw points channel ch at buf, typically a zero-copy window into the
// sample buffer. A nil buf restores the assembler's own buffer.
func (a *Assembler) SetRaw(ch int, buf []int16) error {
	if buf == nil {
		a.raw[ch] = a.owned[ch]
		return nil
	}
	if len(buf) != 2*a.length {
		return fmt.Errorf("%w: raw buffer of %d values, want %d", ErrConfig, len(buf), 2*a.length)
	}
	a.raw[ch] = buf
	return nil
}

// Convert scales the raw subframe to float on every channel. It does nothing
// if the subframe was already converted and reports whether it ran.
func (a *Assembler) Convert() bool {
	if a.converted {
		return false
	}
	a.convert(0, a.length)
	a.converted = true
	return true
}

func (a *Assembler) convert(start, n int) {
	for ch := range a.chans {
		iq.Deinterleave(a.base[ch].Slice(start, start+n), a.raw[ch][2*start:2*(start+n)], convertScale)
	}
}

// PreprocessSyncView resamples the subframe into the synchronization view
// on every channel. It runs at most once per subframe and reports whether it
// ran.
func (a *Assembler) PreprocessSyncView() (bool, error) {
	if a.syncReady {
		return false, nil
	}
	a.Convert()

	for ch := range a.chans {
		b, s := a.base[ch], a.sync[ch]
		if _, err := a.syncRes[ch].Rotate(b.I, b.Q, s.I, s.Q); err != nil {
			return false, fmt.Errorf("sync view channel %d: %w", ch, err)
		}
	}

	a.syncReady = true
	return true, nil
}

// SyncViews returns the synchronization views of every channel. They are
// valid after PreprocessSyncView until the next subframe.
func (a *Assembler) SyncViews() []iq.Vector { return a.sync }

// PreprocessBroadcastViews resamples the subframe into the broadcast view
// (1920 samples, the 6 RB rate) on every channel. It runs at most once per
// subframe and reports whether it ran.
func (a *Assembler) PreprocessBroadcastViews() (bool, error) {
	if a.bcastReady {
		return false, nil
	}
	a.Convert()

	for ch := range a.chans {
		b, v := a.base[ch], a.bcast[ch]
		if _, err := a.bcastRes[ch].Rotate(b.I, b.Q, v.I, v.Q); err != nil {
			return false, fmt.Errorf("broadcast view channel %d: %w", ch, err)
		}
	}

	a.bcastReady = true
	return true, nil
}

// BroadcastViews returns the broadcast views of every channel. They are
// valid after PreprocessBroadcastViews until the next subframe.
func (a *Assembler) BroadcastViews() []iq.Vector { return a.bcast }

// Update closes the subframe: resamplers whose view was not produced are
// advanced over the subframe and the raw tail is saved as look-back history.
func (a *Assembler) Update() error {
	if !a.converted {
		a.convert(a.length-a.taps, a.taps)
	}

	for ch := range a.chans {
		b := a.base[ch]
		if !a.syncReady {
			if err := a.syncRes[ch].Update(b.I, b.Q); err != nil {
				return fmt.Errorf("sync history channel %d: %w", ch, err)
			}
		}

		copy(a.history[ch], a.raw[ch][2*(a.length-a.hlen):])

		if !a.bcastReady {
			if err := a.bcastRes[ch].Update(b.I, b.Q); err != nil {
				return fmt.Errorf("broadcast history channel %d: %w", ch, err)
			}
		}
	}

	return nil
}

// Reset clears the per-subframe flags. Resampler and history state persist.
func (a *Assembler) Reset() {
	a.converted = false
	a.syncReady = false
	a.bcastReady = false
}

// Delay writes the first n samples of channel ch's raw subframe delayed by
// half the filter length into dst, with the head taken from the look-back
// history shifted by offset samples. It reports false if n exceeds the
// subframe or dst cannot hold n samples.
//
// Offsets in (0, taps/2] leave offset samples before the body untouched,
// except that an offset of exactly 1 fills that sample with the integer mean
// of its neighbours. Offsets below -OffsetLimit reach past the history; the
// unreachable leading samples are zeroed.
func (a *Assembler) Delay(ch int, dst []int16, n, offset int) bool {
	if n < 0 || n > a.length || len(dst) < 2*n {
		return false
	}

	out := dst
	if n < a.length {
		out = a.scratch
		copy(out, dst[:2*n])
	}

	d := a.taps / 2
	offset = min(offset, d)

	var gap, head int
	switch {
	case offset < -OffsetLimit:
		gap = min(-offset-OffsetLimit, d)
		head = d - gap
	case offset > 0:
		head = d - offset
	default:
		head = d
	}

	src := max(OffsetLimit+offset+gap, 0)
	clear(out[:2*gap])
	copy(out[2*gap:2*(gap+head)], a.history[ch][2*src:2*(src+head)])
	copy(out[2*d:], a.raw[ch][:2*(a.length-d)])

	if offset == 1 {
		interpolate(out, d-1)
	}

	if n < a.length {
		copy(dst[:2*n], out)
	}
	return true
}

// interpolate replaces sample k with the truncated mean of samples k-1 and
// k+1, per component.
func interpolate(buf []int16, k int) {
	buf[2*k] = int16((int32(buf[2*(k-1)]) + int32(buf[2*(k+1)])) / 2)
	buf[2*k+1] = int16((int32(buf[2*(k-1)+1]) + int32(buf[2*(k+1)+1])) / 2)
}
