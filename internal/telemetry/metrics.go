// Package telemetry exposes the receiver's Prometheus metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ltesync"

// Metrics holds all Prometheus collectors of one receiver. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	syncState        prometheus.Gauge       // Current sync state index
	transitions      *prometheus.CounterVec // State transitions (by from, to)
	misses           *prometheus.CounterVec // Detection misses (by kind)
	subframesRead    prometheus.Counter     // Subframes pulled from the radio
	subframesQueued  prometheus.Counter     // Subframes handed to the decoders
	subframesDropped prometheus.Counter     // Subframes dropped for lack of a free buffer
	decodes          *prometheus.CounterVec // Decoder results (by result)
	freqCorrections  prometheus.Counter     // Averaged frequency corrections applied
	freqOffset       prometheus.Gauge       // Last applied correction in Hz
	timingSlips      prometheus.Counter     // Absolute timing slip in native samples
	ringOverflows    prometheus.Counter     // Sample buffer overruns
	faults           *prometheus.CounterVec // Radio faults (by kind)
	reacquisitions   prometheus.Counter     // Supervisor restarts of the acquisition flow
	cellID           prometheus.Gauge       // Physical cell identity in use
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		syncState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_state",
			Help:      "Current synchronization state (0=PSS search ... 6=PDSCH)",
		}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Synchronization state transitions",
		}, []string{"from", "to"}),
		misses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detection_misses_total",
			Help:      "Synchronization detection misses by kind",
		}, []string{"kind"}),
		subframesRead: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subframes_read_total",
			Help:      "Subframes read from the radio source",
		}),
		subframesQueued: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subframes_queued_total",
			Help:      "Subframes handed to the decode workers",
		}),
		subframesDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subframes_dropped_total",
			Help:      "Subframes dropped because no work buffer was free",
		}),
		decodes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decodes_total",
			Help:      "Decode worker results",
		}, []string{"result"}),
		freqCorrections: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frequency_corrections_total",
			Help:      "Averaged frequency corrections applied to the front end",
		}),
		freqOffset: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "frequency_correction_hz",
			Help:      "Last frequency correction applied to the front end",
		}),
		timingSlips: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timing_slip_samples_total",
			Help:      "Accumulated magnitude of timing corrections in native samples",
		}),
		ringOverflows: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ring_overflows_total",
			Help:      "Sample buffer overruns",
		}),
		faults: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "radio_faults_total",
			Help:      "Radio source faults by kind",
		}, []string{"kind"}),
		reacquisitions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reacquisitions_total",
			Help:      "Acquisition restarts after recoverable faults",
		}),
		cellID: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cell_id",
			Help:      "Physical layer cell identity in use (-1 when unknown)",
		}),
	}
}

// RecordTransition records a state change.
func (m *Metrics) RecordTransition(from, to string, toIndex int) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
	m.syncState.Set(float64(toIndex))
}

// RecordMiss records a detection miss of the given kind.
func (m *Metrics) RecordMiss(kind string) {
	if m == nil {
		return
	}
	m.misses.WithLabelValues(kind).Inc()
}

// RecordSubframeRead records one subframe pulled from the radio and the
// timing correction applied to it.
func (m *Metrics) RecordSubframeRead(slip int) {
	if m == nil {
		return
	}
	m.subframesRead.Inc()
	if slip < 0 {
		slip = -slip
	}
	m.timingSlips.Add(float64(slip))
}

// RecordQueued records a subframe handed to the decoders.
func (m *Metrics) RecordQueued() {
	if m == nil {
		return
	}
	m.subframesQueued.Inc()
}

// RecordDropped records a subframe dropped for lack of a work buffer.
func (m *Metrics) RecordDropped() {
	if m == nil {
		return
	}
	m.subframesDropped.Inc()
}

// RecordDecode records one decoder result.
func (m *Metrics) RecordDecode(ok bool) {
	if m == nil {
		return
	}
	result := "fail"
	if ok {
		result = "ok"
	}
	m.decodes.WithLabelValues(result).Inc()
}

// RecordFrequencyCorrection records an averaged correction in Hz.
func (m *Metrics) RecordFrequencyCorrection(hz float64) {
	if m == nil {
		return
	}
	m.freqCorrections.Inc()
	m.freqOffset.Set(hz)
}

// RecordOverflow records a sample buffer overrun.
func (m *Metrics) RecordOverflow() {
	if m == nil {
		return
	}
	m.ringOverflows.Inc()
}

// RecordFault records a radio fault of the given kind.
func (m *Metrics) RecordFault(kind string) {
	if m == nil {
		return
	}
	m.faults.WithLabelValues(kind).Inc()
}

// RecordReacquisition records a supervisor restart.
func (m *Metrics) RecordReacquisition() {
	if m == nil {
		return
	}
	m.reacquisitions.Inc()
}

// SetCellID records the cell identity in use.
func (m *Metrics) SetCellID(id int) {
	if m == nil {
		return
	}
	m.cellID.Set(float64(id))
}
