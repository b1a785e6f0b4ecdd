package ltesync

import (
	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tphakala/go-lte-sync/internal/cellsync"
	"github.com/tphakala/go-lte-sync/internal/iq"
	"github.com/tphakala/go-lte-sync/internal/lte"
	"github.com/tphakala/go-lte-sync/internal/radio"
	"github.com/tphakala/go-lte-sync/internal/telemetry"
	"github.com/tphakala/go-lte-sync/internal/work"
)

// Downlink numerology.
type (
	Bandwidth   = lte.Bandwidth
	CellID      = lte.CellID
	Time        = lte.Time
	MIB         = lte.MIB
	PHICHGroups = lte.PHICHGroups
)

// Supported bandwidths.
const (
	RB6   = lte.RB6
	RB15  = lte.RB15
	RB25  = lte.RB25
	RB50  = lte.RB50
	RB75  = lte.RB75
	RB100 = lte.RB100
)

// Synchronization state and control inputs.
type (
	State        = cellsync.State
	SubframeMode = cellsync.SubframeMode
)

// Synchronization states.
const (
	PSSSync   = cellsync.PSSSync
	PSSSync2  = cellsync.PSSSync2
	SSSSync   = cellsync.SSSSync
	PBCHSync  = cellsync.PBCHSync
	PBCH      = cellsync.PBCH
	PDSCHSync = cellsync.PDSCHSync
	PDSCH     = cellsync.PDSCH
)

// Subframe dispatch modes.
const (
	SubframeOff  = cellsync.SubframeOff
	SubframeAll  = cellsync.SubframeAll
	SubframeEven = cellsync.SubframeEven
	SubframeOdd  = cellsync.SubframeOdd
)

// ParseSubframeMode parses off, all, even or odd.
func ParseSubframeMode(s string) (SubframeMode, error) { return cellsync.ParseSubframeMode(s) }

// Collaborator interfaces. The detectors in this module implement the
// PSS, SSS and frequency interfaces; the MIB and data decoders come from
// the caller. Views are planar complex sample vectors, one per channel.
type (
	Vector             = iq.Vector
	PSSDetector        = cellsync.PSSDetector
	PSSMatch           = cellsync.PSSMatch
	SSSDetector        = cellsync.SSSDetector
	SSSMatch           = cellsync.SSSMatch
	MIBDecoder         = cellsync.MIBDecoder
	FrequencyEstimator = cellsync.FrequencyEstimator
	CellConfigurator   = cellsync.CellConfigurator
)

// Work handed to the decoders.
type (
	Buffer      = work.Buffer
	Decoder     = work.Decoder
	DecoderFunc = work.DecoderFunc
)

// Radio side.
type (
	Source   = radio.Source
	Streamer = radio.Streamer
	Packet   = radio.Packet
	Device   = radio.Device
	Fault    = radio.Fault
)

// NewDevice buffers a Streamer into a Source with rings of capacity
// samples per channel.
func NewDevice(stream Streamer, capacity int, logger *log.Logger, metrics *Metrics) (*Device, error) {
	return radio.NewDevice(stream, capacity, logger, metrics)
}

// IsRecoverable reports whether err is a radio fault that a restart of the
// timeline clears.
func IsRecoverable(err error) bool { return radio.IsRecoverable(err) }

// Metrics holds the receiver's Prometheus collectors. A nil *Metrics
// records nothing.
type Metrics = telemetry.Metrics

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics { return telemetry.New(reg) }
