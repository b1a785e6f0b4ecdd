// Package cellsync drives the downlink synchronization state machine: PSS
// search, sector and timing confirmation, SSS cell identity, MIB decode and
// data tracking. The machine steps once per subframe; all mutable state
// lives in a Context.
package cellsync

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/tphakala/go-lte-sync/internal/iq"
	"github.com/tphakala/go-lte-sync/internal/lte"
	"github.com/tphakala/go-lte-sync/internal/subframe"
	"github.com/tphakala/go-lte-sync/internal/telemetry"
)

// ErrConfig is returned for a machine that cannot be built.
var ErrConfig = errors.New("cellsync: invalid configuration")

// Config holds the machine parameters.
type Config struct {
	Mode Mode

	// Threshold is the PSS search detection magnitude. Zero selects
	// DefaultThreshold.
	Threshold float64

	// FreqWindow is the frequency averaging window. Zero selects
	// DefaultFreqWindow.
	FreqWindow int
}

// Deps are the collaborators of a machine. Frequency and Cell are optional;
// Pool is required in tracking mode.
type Deps struct {
	Assembler *subframe.Assembler
	PSS       PSSDetector
	SSS       SSSDetector
	MIB       MIBDecoder
	Frequency FrequencyEstimator
	Cell      CellConfigurator
	FrontEnd  FrontEnd
	Pool      BufferPool

	Logger  *log.Logger
	Metrics *telemetry.Metrics
}

// Result is the outcome of one step.
type Result struct {
	// Done is set in acquisition mode when a MIB was decoded.
	Done bool
	MIB  lte.MIB
}

// Machine is the synchronization state machine of one receiver.
type Machine struct {
	cfg  Config
	deps Deps
	log  *log.Logger
}

// New builds a machine.
func New(cfg Config, deps Deps) (*Machine, error) {
	if deps.Assembler == nil || deps.PSS == nil || deps.SSS == nil || deps.MIB == nil || deps.FrontEnd == nil {
		return nil, fmt.Errorf("%w: missing collaborator", ErrConfig)
	}
	if cfg.Mode == Tracking && deps.Pool == nil {
		return nil, fmt.Errorf("%w: tracking requires a buffer pool", ErrConfig)
	}
	if cfg.Threshold < 0 || cfg.FreqWindow < 0 {
		return nil, fmt.Errorf("%w: negative threshold or window", ErrConfig)
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.FreqWindow == 0 {
		cfg.FreqWindow = DefaultFreqWindow
	}

	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Machine{
		cfg:  cfg,
		deps: deps,
		log:  logger.WithPrefix("sync"),
	}, nil
}

// Mode returns the machine's mode.
func (m *Machine) Mode() Mode { return m.cfg.Mode }

// Step advances sc by one subframe. adjust is the timing correction the
// reader applied to this subframe, in native samples. Detection failures
// only move the state; an error means the step could not run.
func (m *Machine) Step(ctx context.Context, sc *Context, adjust int) (Result, error) {
	sc.Time.Advance()

	if err := m.common(sc); err != nil {
		return Result{}, err
	}

	var (
		res Result
		err error
	)
	switch m.cfg.Mode {
	case Acquisition:
		res, err = m.acquire(ctx, sc)
	case Tracking:
		err = m.track(ctx, sc, adjust)
	}
	if err != nil {
		return res, err
	}

	if err := m.averageFrequency(sc); err != nil {
		return res, err
	}

	if err := m.deps.Assembler.Update(); err != nil {
		return res, fmt.Errorf("subframe update: %w", err)
	}

	return res, nil
}

// common runs the acquisition states shared by both modes.
func (m *Machine) common(sc *Context) error {
	switch sc.State {
	case PSSSync:
		return m.searchPSS(sc)
	case PSSSync2:
		if sc.Time.Subframe == lte.PSSSubframe0 {
			return m.confirmPSS(sc)
		}
	case SSSSync:
		if sc.Time.Subframe == lte.PSSSubframe0 {
			return m.resolveCell(sc)
		}
	case PBCHSync:
		if sc.Time.Subframe == lte.PSSSubframe0 {
			views, err := m.syncViews()
			if err != nil {
				return err
			}
			if m.checkPSS(sc, views) {
				sc.commonMiss = 0
			} else {
				sc.commonMiss++
				m.log.Debug("PSS check failed", "misses", sc.commonMiss, "time", sc.Time)
				m.deps.Metrics.RecordMiss(missPSSTime)
			}
			if sc.commonMiss > commonMissLimit {
				m.demote(sc, "PSS lost before broadcast decode")
				return nil
			}
			m.transition(sc, PBCH)
		}
	}
	return nil
}

func (m *Machine) searchPSS(sc *Context) error {
	views, err := m.syncViews()
	if err != nil {
		return err
	}

	match := m.deps.PSS.Search(views)
	if match.Magnitude <= m.cfg.Threshold {
		sc.Fine = lte.FineInvalid
		return nil
	}

	coarse := match.Coarse
	if coarse < lte.PSSTarget {
		coarse += lte.SyncHalfFrameLen
	}
	sc.Coarse = coarse
	sc.Time.Subframe = 0
	sc.Sector = match.Sector

	m.log.Info("PSS detected", "sector", match.Sector, "magnitude", match.Magnitude, "offset", match.Coarse)
	m.transition(sc, PSSSync2)
	return nil
}

func (m *Machine) confirmPSS(sc *Context) error {
	views, err := m.syncViews()
	if err != nil {
		return err
	}

	miss := 0
	if m.deps.PSS.Detect(views) != sc.Sector {
		miss++
		m.log.Debug("PSS frequency domain detection failed", "time", sc.Time)
		m.deps.Metrics.RecordMiss(missPSSFreq)
	}

	match := m.deps.PSS.Sync(views, sc.Sector)
	if inWindow(match.Coarse) {
		sc.Coarse = match.Coarse - lte.PSSTarget
	} else {
		miss++
		m.log.Debug("PSS time domain detection failed", "offset", match.Coarse, "time", sc.Time)
		m.deps.Metrics.RecordMiss(missPSSTime)
	}

	if miss > pss2MissLimit {
		m.transition(sc, PSSSync)
		return nil
	}
	m.transition(sc, SSSSync)
	return nil
}

func (m *Machine) resolveCell(sc *Context) error {
	views, err := m.syncViews()
	if err != nil {
		return err
	}

	miss := 0
	match := m.deps.PSS.Sync(views, sc.Sector)
	if inWindow(match.Coarse) {
		sc.Coarse = match.Coarse - lte.PSSTarget
	} else {
		miss++
		m.deps.Metrics.RecordMiss(missPSSTime)
	}
	if m.deps.PSS.Detect(views) != sc.Sector {
		miss++
		m.deps.Metrics.RecordMiss(missPSSFreq)
	}

	sss := m.deps.SSS.Detect(views, sc.Sector)
	switch sss.Status {
	case SSSFound:
		return m.cellFound(sc, sss)
	case SSSNoMatch:
		miss++
		m.deps.Metrics.RecordMiss(missSSS)
		m.log.Debug("no matching SSS", "misses", sc.commonMiss+miss, "time", sc.Time)
	}

	sc.commonMiss += miss
	if sc.commonMiss >= sssMissLimit {
		m.demote(sc, "SSS not resolved")
	}
	return nil
}

func (m *Machine) cellFound(sc *Context, sss SSSMatch) error {
	m.deps.FrontEnd.ShiftFrequency(sss.FreqOffset)
	m.log.Info("SSS detected", "group", sss.Group, "half_frame", sss.HalfFrame, "freq_offset", sss.FreqOffset)

	sc.Time.Subframe = sss.HalfFrame
	sc.Cell = lte.CellID{Sector: sc.Sector, Group: sss.Group}
	sc.commonMiss = 0
	m.transition(sc, PBCHSync)

	if id := sc.Cell.ID(); id != sc.cellID {
		if m.deps.Cell != nil {
			if err := m.deps.Cell.Configure(sc.Cell, m.deps.Assembler.Bandwidth()); err != nil {
				return fmt.Errorf("configure cell %d: %w", id, err)
			}
		}
		sc.cellID = id
		m.deps.Metrics.SetCellID(id)
		m.log.Info("cell identity", "cell", sc.Cell)
	}
	return nil
}

// checkPSS re-verifies sector and timing window, updating the coarse
// offset on success.
func (m *Machine) checkPSS(sc *Context, views []iq.Vector) bool {
	match := m.deps.PSS.Sync(views, sc.Sector)
	if m.deps.PSS.Detect(views) != sc.Sector || !inWindow(match.Coarse) {
		return false
	}
	sc.Coarse = match.Coarse - lte.PSSTarget
	return true
}

// acquire runs the broadcast decode of acquisition mode.
func (m *Machine) acquire(ctx context.Context, sc *Context) (Result, error) {
	if sc.State != PBCH {
		return Result{}, nil
	}

	// PBCH is entered at subframe 0, which carries the broadcast channel.
	// Either way the next frame starts with another timing check.
	mib, ok, err := m.decodeMIB(ctx, sc)
	if err != nil {
		return Result{}, err
	}
	m.transition(sc, PBCHSync)
	if !ok {
		m.broadcastMissed(sc)
		return Result{}, nil
	}
	sc.MIB = mib
	sc.Time.Frame = mib.Frame
	return Result{Done: true, MIB: mib}, nil
}

// track runs the broadcast decode and data dispatch of tracking mode.
func (m *Machine) track(ctx context.Context, sc *Context, adjust int) error {
	switch sc.State {
	case PBCH:
		if !sc.Time.HasBroadcast() {
			return nil
		}
		mib, ok, err := m.decodeMIB(ctx, sc)
		if err != nil {
			return err
		}
		if !ok {
			m.broadcastMissed(sc)
			return nil
		}
		sc.MIB = mib
		sc.Time.Frame = mib.Frame
		sc.broadcastMiss = 0
		m.transition(sc, PDSCHSync)

	case PDSCHSync, PDSCH:
		if sc.Time.Subframe == lte.PSSSubframe5 {
			demoted, err := m.verify(sc)
			if err != nil || demoted {
				return err
			}
		}
		return m.dispatch(sc, adjust)
	}
	return nil
}

func (m *Machine) decodeMIB(ctx context.Context, sc *Context) (lte.MIB, bool, error) {
	views, err := m.broadcastViews()
	if err != nil {
		return lte.MIB{}, false, err
	}

	mib, err := m.deps.MIB.Decode(ctx, views, sc.Cell)
	switch {
	case err == nil:
		m.log.Info("MIB decoded", "bandwidth", mib.Bandwidth, "antennas", mib.Antennas, "frame", mib.Frame)
		return mib, true, nil
	case ctx.Err() != nil:
		return lte.MIB{}, false, ctx.Err()
	case errors.Is(err, ErrNoMIB):
		m.log.Debug("MIB decoding failed", "time", sc.Time)
	default:
		m.log.Warn("MIB decoder error", "err", err)
	}
	return lte.MIB{}, false, nil
}

func (m *Machine) broadcastMissed(sc *Context) {
	sc.broadcastMiss++
	m.deps.Metrics.RecordMiss(missMIB)
	if sc.broadcastMiss > broadcastMissLimit {
		m.demote(sc, "MIB not decoded")
	}
}

// verify re-checks timing, sector and identity at subframe 5 while
// tracking. It reports whether the machine demoted.
func (m *Machine) verify(sc *Context) (bool, error) {
	views, err := m.syncViews()
	if err != nil {
		return false, err
	}

	ok := true
	match := m.deps.PSS.FineSync(views, sc.Sector)
	switch {
	case !inWindow(match.Coarse):
		ok = false
		sc.timingMiss++
		m.deps.Metrics.RecordMiss(missTiming)
	default:
		sc.Coarse = match.Coarse - lte.PSSTarget
		sc.Fine = match.Fine - lte.FineBias

		if !m.deps.PSS.Confirm(views, sc.Sector) {
			ok = false
			sc.timingMiss++
			m.deps.Metrics.RecordMiss(missTiming)
			break
		}

		sss := m.deps.SSS.Detect(views, sc.Sector)
		if sss.Status == SSSFound && (sss.Group != sc.Cell.Group || sss.HalfFrame != lte.PSSSubframe5) {
			ok = false
			sc.identityMiss++
			m.deps.Metrics.RecordMiss(missIdentity)
			m.log.Debug("inconsistent SSS", "group", sss.Group, "half_frame", sss.HalfFrame, "misses", sc.identityMiss)
		}
	}

	if sc.timingMiss > timingMissLimit || sc.identityMiss > identityMissLimit {
		m.demote(sc, "tracking lost")
		return true, nil
	}
	if ok && sc.State == PDSCHSync {
		m.transition(sc, PDSCH)
	}
	return false, nil
}

// dispatch hands the current subframe to the decoders if it is enabled.
func (m *Machine) dispatch(sc *Context, adjust int) error {
	if !sc.Enabled(sc.Time) {
		return nil
	}

	b, ok := m.deps.Pool.TryAcquire()
	if !ok {
		m.log.Warn("dropped subframe, no free work buffer", "time", sc.Time)
		m.deps.Metrics.RecordDropped()
		return nil
	}

	if b.DecodeOK {
		sc.timingMiss = 0
		sc.identityMiss = 0
		b.DecodeOK = false
	}

	b.Bandwidth = m.deps.Assembler.Bandwidth()
	b.CellID = sc.cellID
	b.TxAntennas = sc.MIB.Antennas
	b.PHICHGroups = sc.MIB.PHICHGroups
	b.Time = sc.Time
	b.RNTI = sc.RNTI()

	asm := m.deps.Assembler
	for ch := range asm.Channels() {
		if ch >= len(b.Samples) || !asm.Delay(ch, b.Samples[ch], asm.Len(), adjust) {
			m.deps.Pool.Release(b)
			return fmt.Errorf("%w: work buffer does not fit channel %d", ErrConfig, ch)
		}
	}

	if err := m.deps.Pool.Submit(b); err != nil {
		m.log.Debug("work pool closed", "err", err)
		return nil
	}
	m.deps.Metrics.RecordQueued()
	return nil
}

// averageFrequency accumulates the per-subframe frequency estimate once the
// cell is known and applies the mean when the window fills. The estimate
// runs on the broadcast view, where the cyclic prefix spans enough samples
// to correlate against.
func (m *Machine) averageFrequency(sc *Context) error {
	if m.deps.Frequency == nil || sc.State < PBCHSync {
		return nil
	}

	views, err := m.broadcastViews()
	if err != nil {
		return err
	}

	hz, ok := m.deps.Frequency.Estimate(views)
	if !ok {
		return nil
	}
	if mean, full := sc.freq.add(hz, m.cfg.FreqWindow); full {
		m.deps.FrontEnd.ShiftFrequency(mean)
		m.deps.Metrics.RecordFrequencyCorrection(mean)
		m.log.Info("frequency correction", "hz", mean)
	}
	return nil
}

func (m *Machine) syncViews() ([]iq.Vector, error) {
	if _, err := m.deps.Assembler.PreprocessSyncView(); err != nil {
		return nil, err
	}
	return m.deps.Assembler.SyncViews(), nil
}

func (m *Machine) broadcastViews() ([]iq.Vector, error) {
	if _, err := m.deps.Assembler.PreprocessBroadcastViews(); err != nil {
		return nil, err
	}
	return m.deps.Assembler.BroadcastViews(), nil
}

// demote returns to the PSS search with the frequency correction undone.
func (m *Machine) demote(sc *Context, reason string) {
	m.log.Info("synchronization lost", "reason", reason, "state", sc.State, "time", sc.Time)
	m.transition(sc, PSSSync)
	m.deps.FrontEnd.ResetFrequency()
	sc.clearMisses()
	sc.freq.reset()
}

func (m *Machine) transition(sc *Context, to State) {
	from := sc.State
	sc.State = to
	if from != to {
		m.log.Debug("state change", "from", from, "to", to, "time", sc.Time)
		m.deps.Metrics.RecordTransition(from.String(), to.String(), int(to))
	}
}

// inWindow reports whether a PSS peak lies strictly within the window
// around the expected position.
func inWindow(coarse int) bool {
	return coarse > lte.PSSTarget-lte.PSSWindow && coarse < lte.PSSTarget+lte.PSSWindow
}
