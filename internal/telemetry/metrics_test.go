package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordTransition("PSS-Sync", "PSS-Sync2", 1)
	m.RecordTransition("PSS-Sync", "PSS-Sync2", 1)
	m.RecordMiss("sss")
	m.RecordSubframeRead(-24)
	m.RecordSubframeRead(2)
	m.RecordQueued()
	m.RecordDropped()
	m.RecordDecode(true)
	m.RecordDecode(false)
	m.RecordDecode(false)
	m.RecordFrequencyCorrection(-152.5)
	m.RecordOverflow()
	m.RecordFault("timestamp")
	m.RecordReacquisition()
	m.SetCellID(301)

	assert.InDelta(t, 2, testutil.ToFloat64(m.transitions.WithLabelValues("PSS-Sync", "PSS-Sync2")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.syncState), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.misses.WithLabelValues("sss")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.subframesRead), 0)
	assert.InDelta(t, 26, testutil.ToFloat64(m.timingSlips), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.subframesQueued), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.subframesDropped), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.decodes.WithLabelValues("ok")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.decodes.WithLabelValues("fail")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.freqCorrections), 0)
	assert.InDelta(t, -152.5, testutil.ToFloat64(m.freqOffset), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ringOverflows), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.faults.WithLabelValues("timestamp")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.reacquisitions), 0)
	assert.InDelta(t, 301, testutil.ToFloat64(m.cellID), 0)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordTransition("a", "b", 0)
		m.RecordMiss("pss")
		m.RecordSubframeRead(1)
		m.RecordQueued()
		m.RecordDropped()
		m.RecordDecode(true)
		m.RecordFrequencyCorrection(1)
		m.RecordOverflow()
		m.RecordFault("x")
		m.RecordReacquisition()
		m.SetCellID(1)
	})
}

func TestMetrics_DoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
