package radio

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/tphakala/go-lte-sync/internal/lte"
	"github.com/tphakala/go-lte-sync/internal/telemetry"
	"github.com/tphakala/go-lte-sync/internal/timing"
)

// SubframeReader pulls timing-corrected subframes from a Source.
//
// The reader keeps the timestamp of subframe 0 of the current frame. Each
// read first moves it forward a frame when the subframe counter wrapped,
// then by the timing correction resolved from the previous cycle's
// measurement, and borrows the subframe at its offset within the frame.
type SubframeReader struct {
	src      Source
	bw       lte.Bandwidth
	subLen   int64
	frameLen int64

	started bool
	sf0     int64 // timestamp of subframe 0
	prev    int   // subframe number of the previous read
	ts      int64 // timestamp of the borrowed subframe
	bufs    [][]int16
	pulled  bool

	log     *log.Logger
	metrics *telemetry.Metrics
}

// NewSubframeReader creates a reader of bw subframes from src.
func NewSubframeReader(src Source, bw lte.Bandwidth, logger *log.Logger, metrics *telemetry.Metrics) (*SubframeReader, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil source", ErrConfig)
	}
	if !bw.Valid() {
		return nil, fmt.Errorf("%w: %w", ErrConfig, lte.ErrBandwidth)
	}
	if logger == nil {
		logger = log.Default()
	}

	return &SubframeReader{
		src:      src,
		bw:       bw,
		subLen:   int64(bw.SubframeLen()),
		frameLen: int64(bw.FrameLen()),
		bufs:     make([][]int16, src.Channels()),
		log:      logger.WithPrefix("reader"),
		metrics:  metrics,
	}, nil
}

// SubframeLen returns the number of samples per subframe.
func (r *SubframeReader) SubframeLen() int { return int(r.subLen) }

// Start waits for the first samples and anchors subframe 0 one subframe
// after the oldest stored sample.
func (r *SubframeReader) Start(ctx context.Context) error {
	r.Reset()
	for r.src.High() <= r.src.Low() {
		if err := r.reload(ctx); err != nil {
			return err
		}
	}

	r.sf0 = r.src.Low() + r.subLen
	r.prev = -1
	r.started = true
	r.log.Debug("timeline anchored", "subframe0", r.sf0)
	return nil
}

// Read borrows subframe sf, corrected by the timing measured in the
// previous cycle, and returns the applied correction in samples. The
// buffers stay valid until Commit.
func (r *SubframeReader) Read(ctx context.Context, sf, coarse, fine int, tracking bool) ([][]int16, int, error) {
	if !r.started {
		return nil, 0, fmt.Errorf("%w: reader not started", ErrConfig)
	}
	if r.pulled {
		return nil, 0, fmt.Errorf("%w: previous subframe not committed", ErrConfig)
	}
	if sf < 0 || sf >= lte.SubframesPerFrame {
		return nil, 0, fmt.Errorf("%w: subframe %d", ErrConfig, sf)
	}

	if sf <= r.prev {
		r.sf0 += r.frameLen
	}

	offset, err := timing.Resolve(coarse, fine, tracking, r.bw)
	if err != nil && !errors.Is(err, timing.ErrNoTiming) {
		return nil, 0, err
	}
	r.sf0 += int64(offset)
	ts := r.sf0 + int64(sf)*r.subLen

	for ts+r.subLen > r.src.High() {
		if err := r.reload(ctx); err != nil {
			return nil, 0, err
		}
	}

	if err := r.src.Pull(r.bufs, int(r.subLen), ts); err != nil {
		f := &Fault{Kind: FaultUnderrun, TS: ts, Err: err}
		r.metrics.RecordFault(f.Kind.String())
		return nil, 0, f
	}

	r.prev = sf
	r.ts = ts
	r.pulled = true
	r.metrics.RecordSubframeRead(offset)
	if offset != 0 {
		r.log.Debug("timing adjusted", "subframe", sf, "offset", offset, "ts", ts)
	}
	return r.bufs, offset, nil
}

// reload stores one more packet. Overruns are logged by the source and do
// not stop the read.
func (r *SubframeReader) reload(ctx context.Context) error {
	err := r.src.Reload(ctx)
	if err == nil || errors.Is(err, ErrOverflow) {
		return nil
	}

	var f *Fault
	if errors.As(err, &f) {
		r.metrics.RecordFault(f.Kind.String())
	}
	return err
}

// Commit releases the subframe borrowed by Read.
func (r *SubframeReader) Commit() error {
	if !r.pulled {
		return nil
	}
	r.pulled = false
	return r.src.Commit(r.bufs)
}

// TS returns the timestamp of the last subframe read.
func (r *SubframeReader) TS() int64 { return r.ts }

// Reset drops the timeline anchor and any outstanding borrow.
func (r *SubframeReader) Reset() {
	if r.pulled {
		_ = r.src.Commit(r.bufs)
		r.pulled = false
	}
	r.started = false
	r.sf0, r.ts = 0, 0
	r.prev = -1
}
