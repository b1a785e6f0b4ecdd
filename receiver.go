package ltesync

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/go-lte-sync/internal/cellsync"
	"github.com/tphakala/go-lte-sync/internal/detect"
	"github.com/tphakala/go-lte-sync/internal/lte"
	"github.com/tphakala/go-lte-sync/internal/radio"
	"github.com/tphakala/go-lte-sync/internal/subframe"
	"github.com/tphakala/go-lte-sync/internal/telemetry"
	"github.com/tphakala/go-lte-sync/internal/work"
)

// Collaborators are the parts of a receiver supplied by the caller. Source
// and MIB are required, Decoder is required for Track and Run. Nil
// detectors select the ones in this module; Cell is optional.
type Collaborators struct {
	Source  Source
	MIB     MIBDecoder
	Decoder Decoder

	PSS       PSSDetector
	SSS       SSSDetector
	Frequency FrequencyEstimator
	Cell      CellConfigurator

	Logger  *log.Logger
	Metrics *Metrics
}

// Status is a snapshot of the synchronization progress.
type Status struct {
	State State
	Time  Time
	Cell  CellID
	MIB   MIB
}

// Receiver synchronizes to one LTE downlink carried by a Source and hands
// timed subframes to a Decoder.
//
// Acquire, Track and Run drive the source and must not run concurrently.
// The control methods and Status may be called from any goroutine.
type Receiver struct {
	cfg Config
	c   Collaborators
	bw  lte.Bandwidth
	sc  *cellsync.Context

	log     *log.Logger
	metrics *telemetry.Metrics

	mu     sync.Mutex
	status Status
}

// New creates a receiver. The bandwidth follows from the source's sample
// rate.
func New(cfg Config, c Collaborators) (*Receiver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if c.Source == nil || c.MIB == nil {
		return nil, fmt.Errorf("%w: source and MIB decoder are required", ErrInvalidConfig)
	}
	if c.Source.Channels() < 1 {
		return nil, fmt.Errorf("%w: source has no channels", ErrInvalidConfig)
	}
	bw, err := lte.BandwidthForRate(c.Source.Rate())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if c.PSS == nil {
		c.PSS = detect.NewPSS(cfg.DetectThreshold)
	}
	if c.SSS == nil {
		c.SSS = detect.NewSSS(detect.SSSConfig{Average: cfg.SSSAverage, Threshold: cfg.SSSThreshold})
	}
	if !cfg.FrequencyCorrection {
		c.Frequency = nil
	} else if c.Frequency == nil {
		c.Frequency = detect.NewCPEstimator()
	}

	logger := c.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Receiver{
		cfg:     cfg,
		c:       c,
		bw:      bw,
		sc:      cellsync.NewContext(),
		log:     logger,
		metrics: c.Metrics,
	}, nil
}

// Bandwidth returns the bandwidth the receiver runs at.
func (r *Receiver) Bandwidth() Bandwidth { return r.bw }

// SetSubframeMode selects when subframe number sf is decoded.
func (r *Receiver) SetSubframeMode(sf int, mode SubframeMode) error {
	return r.sc.SetSubframeMode(sf, mode)
}

// SetRNTI sets the identifier stamped on every work buffer.
func (r *Receiver) SetRNTI(rnti uint16) { r.sc.SetRNTI(rnti) }

// Status returns the state after the last processed subframe.
func (r *Receiver) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Acquire searches for a cell and returns its MIB.
func (r *Receiver) Acquire(ctx context.Context) (MIB, error) {
	s, err := r.newSession(cellsync.Acquisition, nil)
	if err != nil {
		return MIB{}, err
	}

	var mib MIB
	err = r.loop(ctx, s, func(res cellsync.Result) bool {
		mib = res.MIB
		return res.Done
	})
	if err != nil {
		return MIB{}, err
	}

	r.log.Info("cell acquired", "cell", r.sc.Cell, "bandwidth", mib.Bandwidth, "antennas", mib.Antennas, "frame", mib.Frame)
	return mib, nil
}

// Track synchronizes from scratch and dispatches enabled subframes to the
// decode workers until ctx is cancelled or the source fails. Cancellation
// returns nil.
func (r *Receiver) Track(ctx context.Context) error {
	if r.c.Decoder == nil {
		return fmt.Errorf("%w: tracking requires a decoder", ErrInvalidConfig)
	}

	pool := work.NewPool(r.cfg.Buffers, r.c.Source.Channels(), r.bw.SubframeLen())
	s, err := r.newSession(cellsync.Tracking, pool)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return work.Workers(gctx, pool, r.cfg.Workers, r.c.Decoder, r.log.WithPrefix("decode"), r.metrics)
	})
	g.Go(func() error {
		defer pool.Close()
		return r.loop(gctx, s, func(cellsync.Result) bool { return false })
	})

	err = g.Wait()
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}

// Run acquires and tracks until ctx is cancelled. Recoverable radio faults
// restart the timeline and the acquisition; any other error is returned.
func (r *Receiver) Run(ctx context.Context) error {
	for {
		err := r.runOnce(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case !radio.IsRecoverable(err):
			return err
		}

		r.log.Warn("radio fault, restarting synchronization", "err", err)
		r.metrics.RecordReacquisition()
		r.c.Source.ResetTimebase()
		r.c.Source.ResetFrequency()
	}
}

func (r *Receiver) runOnce(ctx context.Context) error {
	mib, err := r.Acquire(ctx)
	if err != nil {
		return err
	}
	if mib.Bandwidth != r.bw {
		r.log.Warn("cell bandwidth differs from the source rate, tracking at the source bandwidth",
			"cell", mib.Bandwidth, "source", r.bw)
	}
	return r.Track(ctx)
}

// session is the per-run pipeline: reader, assembler and machine.
type session struct {
	asm     *subframe.Assembler
	machine *cellsync.Machine
	reader  *radio.SubframeReader
}

func (r *Receiver) newSession(mode cellsync.Mode, pool cellsync.BufferPool) (*session, error) {
	chans := r.c.Source.Channels()
	asm, err := subframe.New(chans, r.bw, r.cfg.Taps)
	if err != nil {
		return nil, err
	}

	deps := cellsync.Deps{
		Assembler: asm,
		PSS:       r.c.PSS,
		SSS:       r.c.SSS,
		MIB:       r.c.MIB,
		Frequency: r.c.Frequency,
		Cell:      r.c.Cell,
		FrontEnd:  r.c.Source,
		Pool:      pool,
		Logger:    r.log,
		Metrics:   r.metrics,
	}
	m, err := cellsync.New(cellsync.Config{
		Mode:       mode,
		Threshold:  r.cfg.Threshold,
		FreqWindow: r.cfg.FreqWindow,
	}, deps)
	if err != nil {
		return nil, err
	}

	reader, err := radio.NewSubframeReader(r.c.Source, r.bw, r.log, r.metrics)
	if err != nil {
		return nil, err
	}

	if rs, ok := r.c.SSS.(interface{ Reset() }); ok {
		rs.Reset()
	}
	r.sc.Reset()
	r.log.Debug("session started", "mode", mode, "bandwidth", r.bw, "channels", chans)

	return &session{asm: asm, machine: m, reader: reader}, nil
}

// loop runs one subframe per iteration until done reports true or an error
// stops it.
func (r *Receiver) loop(ctx context.Context, s *session, done func(cellsync.Result) bool) error {
	if err := s.reader.Start(ctx); err != nil {
		return err
	}
	defer s.reader.Reset()

	for sf := 0; ; sf = (sf + 1) % lte.SubframesPerFrame {
		if err := ctx.Err(); err != nil {
			return err
		}

		coarse, fine, tracking := r.sc.TakeTiming()
		bufs, adjust, err := s.reader.Read(ctx, sf, coarse, fine, tracking)
		if err != nil {
			return err
		}

		res, err := r.step(ctx, s, bufs, adjust)
		if cerr := s.reader.Commit(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}

		r.publish()
		if done(res) {
			return nil
		}
	}
}

// step runs the machine over one borrowed subframe. The assembler is
// pointed back at its own buffers before the borrow is returned.
func (r *Receiver) step(ctx context.Context, s *session, bufs [][]int16, adjust int) (cellsync.Result, error) {
	defer func() {
		s.asm.Reset()
		for ch := range bufs {
			_ = s.asm.SetRaw(ch, nil)
		}
	}()

	for ch, buf := range bufs {
		if err := s.asm.SetRaw(ch, buf); err != nil {
			return cellsync.Result{}, err
		}
	}
	return s.machine.Step(ctx, r.sc, adjust)
}

func (r *Receiver) publish() {
	r.mu.Lock()
	r.status = Status{State: r.sc.State, Time: r.sc.Time, Cell: r.sc.Cell, MIB: r.sc.MIB}
	r.mu.Unlock()
}
