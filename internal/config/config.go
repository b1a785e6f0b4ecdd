// Package config loads the lte-sync YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/go-lte-sync/internal/cellsync"
	"github.com/tphakala/go-lte-sync/internal/detect"
	"github.com/tphakala/go-lte-sync/internal/lte"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Source kinds.
const (
	SourceRTP   = "rtp"
	SourceWAV   = "wav"
	SourceSynth = "synth"
)

// Config is the complete configuration file.
type Config struct {
	Radio   Radio   `yaml:"radio"`
	LTE     LTE     `yaml:"lte"`
	Sync    Sync    `yaml:"sync"`
	Work    Work    `yaml:"work"`
	Control Control `yaml:"control"`
	Log     Log     `yaml:"log"`
	Metrics Metrics `yaml:"metrics"`
}

// Radio selects and configures the sample source.
type Radio struct {
	Source string `yaml:"source"`

	// RTP stream
	Address    string `yaml:"address"`
	Interface  string `yaml:"interface"`
	SSRC       uint32 `yaml:"ssrc"`
	ReadBuffer int    `yaml:"read_buffer"`

	// WAV capture
	File string `yaml:"file"`

	Channels      int   `yaml:"channels"`
	PacketLen     int   `yaml:"packet_len"`
	RingSubframes int   `yaml:"ring_subframes"`
	Synth         Synth `yaml:"synth"`
}

// Synth describes the synthetic downlink source.
type Synth struct {
	CellID    int     `yaml:"cell_id"`
	Gain      float64 `yaml:"gain"`
	Noise     float64 `yaml:"noise"`
	Offset    float64 `yaml:"offset_hz"`
	Delay     int     `yaml:"delay"`
	Subframes int     `yaml:"subframes"`
	Seed      uint64  `yaml:"seed"`
}

// LTE holds the downlink parameters.
type LTE struct {
	// ResourceBlocks is the bandwidth of rtp and synth sources. WAV
	// captures take it from their sample rate. Zero selects 6.
	ResourceBlocks int `yaml:"resource_blocks"`
	Taps           int `yaml:"taps"`

	// MIB is returned by the stand-in broadcast decoder.
	MIB MIB `yaml:"mib"`
}

// MIB is the stand-in master information block.
type MIB struct {
	ResourceBlocks int    `yaml:"resource_blocks"`
	Antennas       int    `yaml:"antennas"`
	PHICH          string `yaml:"phich"`
}

// Sync holds the detector and state machine parameters.
type Sync struct {
	Threshold       float64 `yaml:"threshold"`
	DetectThreshold float64 `yaml:"detect_threshold"`
	SSSAverage      int     `yaml:"sss_average"`
	SSSThreshold    float64 `yaml:"sss_threshold"`
	FreqWindow      int     `yaml:"freq_window"`
	FreqCorrection  bool    `yaml:"freq_correction"`
}

// Work sizes the decode stage.
type Work struct {
	Workers int `yaml:"workers"`
	Buffers int `yaml:"buffers"`
}

// Control holds the initial control inputs.
type Control struct {
	RNTI uint16 `yaml:"rnti"`

	// Subframes maps subframe numbers to off, all, even or odd. Missing
	// subframes stay enabled.
	Subframes map[int]string `yaml:"subframes"`
}

// Log configures logging.
type Log struct {
	Level string `yaml:"level"`
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	// Listen is the host:port of the /metrics endpoint. Empty disables it.
	Listen string `yaml:"listen"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Radio: Radio{
			Source:        SourceSynth,
			Address:       "239.1.2.3:5004",
			Channels:      1,
			PacketLen:     1920,
			RingSubframes: 64,
			Synth: Synth{
				CellID: 0,
				Gain:   20000,
				Noise:  40,
				Seed:   1,
			},
		},
		LTE: LTE{
			Taps: 16,
			MIB:  MIB{ResourceBlocks: 6, Antennas: 1, PHICH: "1"},
		},
		Sync: Sync{
			Threshold:       cellsync.DefaultThreshold,
			DetectThreshold: detect.DefaultDetectThreshold,
			SSSAverage:      detect.DefaultSSSAverage,
			SSSThreshold:    detect.DefaultSSSThreshold,
			FreqWindow:      cellsync.DefaultFreqWindow,
			FreqCorrection:  true,
		},
		Work:    Work{Workers: 2, Buffers: 64},
		Control: Control{RNTI: 0xffff},
		Log:     Log{Level: "info"},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
		}
	}

	r := c.Radio
	switch r.Source {
	case SourceRTP:
		check(r.Address != "", "radio.address is required for rtp")
	case SourceWAV:
		check(r.File != "", "radio.file is required for wav")
	case SourceSynth:
		check(r.Synth.CellID >= 0 && r.Synth.CellID < lte.NumSectors*lte.NumGroups,
			"radio.synth.cell_id %d out of range", r.Synth.CellID)
		check(r.Synth.Delay >= 0 && r.Synth.Subframes >= 0, "radio.synth delay and subframes must not be negative")
	default:
		check(false, "radio.source %q is not one of rtp, wav, synth", r.Source)
	}
	check(r.Channels >= 1, "radio.channels must be at least 1")
	check(r.PacketLen >= 1, "radio.packet_len must be at least 1")
	check(r.RingSubframes >= 4, "radio.ring_subframes must be at least 4")

	if c.LTE.ResourceBlocks != 0 {
		_, err := lte.ParseBandwidth(c.LTE.ResourceBlocks)
		check(err == nil, "lte.resource_blocks: %v", err)
	}
	_, err := lte.ParseBandwidth(c.LTE.MIB.ResourceBlocks)
	check(err == nil, "lte.mib.resource_blocks: %v", err)
	check(c.LTE.MIB.Antennas == 1 || c.LTE.MIB.Antennas == 2 || c.LTE.MIB.Antennas == 4,
		"lte.mib.antennas %d is not 1, 2 or 4", c.LTE.MIB.Antennas)
	_, err = ParsePHICH(c.LTE.MIB.PHICH)
	check(err == nil, "lte.mib.phich: %v", err)
	check(c.LTE.Taps >= 4, "lte.taps must be at least 4")

	s := c.Sync
	check(s.Threshold > 0, "sync.threshold must be positive")
	check(s.DetectThreshold > 0 && s.DetectThreshold < 1, "sync.detect_threshold must be in (0, 1)")
	check(s.SSSThreshold > 0 && s.SSSThreshold < 1, "sync.sss_threshold must be in (0, 1)")
	check(s.SSSAverage >= 1, "sync.sss_average must be at least 1")
	check(s.FreqWindow >= 1, "sync.freq_window must be at least 1")

	check(c.Work.Workers >= 1, "work.workers must be at least 1")
	check(c.Work.Buffers >= 1, "work.buffers must be at least 1")

	for sf, mode := range c.Control.Subframes {
		check(sf >= 0 && sf < lte.SubframesPerFrame, "control.subframes: subframe %d", sf)
		_, err := cellsync.ParseSubframeMode(mode)
		check(err == nil, "control.subframes[%d]: %v", sf, err)
	}

	_, err = log.ParseLevel(c.Log.Level)
	check(err == nil, "log.level: %v", err)

	return errors.Join(errs...)
}

// Bandwidth returns the configured source bandwidth.
func (l LTE) Bandwidth() (lte.Bandwidth, error) {
	if l.ResourceBlocks == 0 {
		return lte.RB6, nil
	}
	return lte.ParseBandwidth(l.ResourceBlocks)
}

// ParsePHICH parses the Ng names 1/6, 1/2, 1 and 2.
func ParsePHICH(s string) (lte.PHICHGroups, error) {
	switch s {
	case "1/6":
		return lte.NgSixth, nil
	case "1/2":
		return lte.NgHalf, nil
	case "1":
		return lte.NgOne, nil
	case "2":
		return lte.NgTwo, nil
	}
	return 0, fmt.Errorf("unknown PHICH Ng %q", s)
}
