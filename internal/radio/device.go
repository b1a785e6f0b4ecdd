package radio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/tphakala/go-lte-sync/internal/telemetry"
	"github.com/tphakala/go-lte-sync/internal/tsbuf"
)

// Device stores a Streamer's packets in one timestamped ring per channel
// and lends them back out by timestamp. It is the Source the subframe
// reader runs on.
//
// Reload, Pull and Commit belong to one goroutine. The frequency controls
// may be called from anywhere.
type Device struct {
	stream Streamer
	rings  []*tsbuf.Buffer
	chunk  int

	started bool
	last    int64 // timestamp of the previous packet
	next    int64 // timestamp expected for the next packet

	mu  sync.Mutex
	nco nco

	log     *log.Logger
	metrics *telemetry.Metrics
}

// NewDevice wraps stream with rings of capacity samples per channel.
func NewDevice(stream Streamer, capacity int, logger *log.Logger, metrics *telemetry.Metrics) (*Device, error) {
	if stream == nil {
		return nil, fmt.Errorf("%w: nil stream", ErrConfig)
	}
	if stream.Channels() < 1 || stream.Rate() <= 0 {
		return nil, fmt.Errorf("%w: %d channels at %g sps", ErrConfig, stream.Channels(), stream.Rate())
	}
	if capacity < minRingCapacity {
		return nil, fmt.Errorf("%w: ring capacity %d below %d", ErrConfig, capacity, minRingCapacity)
	}
	if logger == nil {
		logger = log.Default()
	}

	d := &Device{
		stream:  stream,
		rings:   make([]*tsbuf.Buffer, stream.Channels()),
		nco:     newNCO(stream.Rate()),
		log:     logger.WithPrefix("radio"),
		metrics: metrics,
	}
	for ch := range d.rings {
		d.rings[ch] = tsbuf.New(capacity)
	}
	// Writes of half a ring leave room for the unread tail.
	d.chunk = d.rings[0].Capacity() / 2
	return d, nil
}

// Channels returns the number of receive channels.
func (d *Device) Channels() int { return len(d.rings) }

// Rate returns the sample rate.
func (d *Device) Rate() float64 { return d.stream.Rate() }

// High returns the timestamp one past the newest stored sample.
func (d *Device) High() int64 { return d.rings[0].End() }

// Low returns the timestamp of the oldest stored sample.
func (d *Device) Low() int64 { return d.rings[0].Start() }

// Reload receives one packet and stores it. An overrun of unread samples is
// reported as ErrOverflow after the packet is stored.
func (d *Device) Reload(ctx context.Context) error {
	pkt, err := d.stream.Recv(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &Fault{Kind: FaultStream, TS: d.next, Err: err}
	}
	if len(pkt.Samples) != len(d.rings) {
		return &Fault{Kind: FaultStream, TS: pkt.TS,
			Err: fmt.Errorf("packet carries %d channels, want %d", len(pkt.Samples), len(d.rings))}
	}

	n := pkt.Len()
	if d.started {
		if pkt.TS < d.last {
			return &Fault{Kind: FaultTimestamp, TS: pkt.TS, Last: d.last}
		}
		if pkt.TS != d.next {
			d.log.Warn("timestamp jump", "expected", d.next, "got", pkt.TS, "delta", pkt.TS-d.next)
		}
	}
	d.started = true
	d.last = pkt.TS
	d.next = pkt.TS + int64(n)

	overflow, err := d.store(pkt, n)
	if err != nil {
		return err
	}
	if overflow != nil {
		d.metrics.RecordOverflow()
		d.log.Warn("sample buffer overrun", "ts", pkt.TS, "err", overflow)
		return overflow
	}
	return nil
}

// store writes every channel of pkt, chunked to the ring size.
func (d *Device) store(pkt Packet, n int) (overflow, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for off := 0; off < n; off += d.chunk {
		m := min(d.chunk, n-off)
		ts := pkt.TS + int64(off)
		for ch, ring := range d.rings {
			src := pkt.Samples[ch][2*off : 2*(off+m)]
			buf, err := ring.WriteBuf(m, ts)
			if err != nil {
				return nil, &Fault{Kind: FaultTimestamp, TS: ts, Last: d.last, Err: err}
			}
			d.nco.mix(buf, src, ts)
			if err := ring.CommitWrite(buf); err != nil {
				if !errors.Is(err, tsbuf.ErrOverflow) {
					return nil, &Fault{Kind: FaultStream, TS: ts, Err: err}
				}
				overflow = fmt.Errorf("channel %d: %w", ch, err)
			}
		}
	}
	return overflow, nil
}

// Pull borrows n samples at ts from every channel into bufs. On failure no
// borrow is left outstanding.
func (d *Device) Pull(bufs [][]int16, n int, ts int64) error {
	if len(bufs) != len(d.rings) {
		return fmt.Errorf("%w: %d buffers for %d channels", ErrConfig, len(bufs), len(d.rings))
	}
	if avail := d.rings[0].Avail(ts); avail < int64(n) {
		return fmt.Errorf("%w: %d of %d samples at %d", tsbuf.ErrTimestamp, avail, n, ts)
	}

	for ch, ring := range d.rings {
		buf, err := ring.ReadBuf(n, ts)
		if err != nil {
			for k := range ch {
				_ = d.rings[k].CommitRead(bufs[k])
			}
			return fmt.Errorf("channel %d: %w", ch, err)
		}
		bufs[ch] = buf
	}
	return nil
}

// Commit returns buffers obtained from Pull.
func (d *Device) Commit(bufs [][]int16) error {
	var errs []error
	for ch, ring := range d.rings {
		if err := ring.CommitRead(bufs[ch]); err != nil {
			errs = append(errs, fmt.Errorf("channel %d: %w", ch, err))
		}
	}
	return errors.Join(errs...)
}

// ShiftFrequency adds hz to the carrier correction. Samples stored from
// the next packet on are mixed down by the accumulated correction.
func (d *Device) ShiftFrequency(hz float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nco.shift(hz, d.next)
	d.log.Debug("frequency shift", "hz", hz, "total", d.nco.hz)
}

// ResetFrequency removes the carrier correction.
func (d *Device) ResetFrequency() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nco.reset()
}

// Frequency returns the accumulated carrier correction in Hz.
func (d *Device) Frequency() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nco.hz
}

// ResetTimebase empties the rings and accepts the next packet's timestamp
// as a new timeline.
func (d *Device) ResetTimebase() {
	for _, ring := range d.rings {
		ring.Reset()
	}
	d.started = false
	d.last, d.next = 0, 0
}

// Close closes the underlying stream.
func (d *Device) Close() error { return d.stream.Close() }
