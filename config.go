package ltesync

import (
	"errors"
	"fmt"

	"github.com/tphakala/go-lte-sync/internal/cellsync"
	"github.com/tphakala/go-lte-sync/internal/detect"
	"github.com/tphakala/go-lte-sync/internal/subframe"
	"github.com/tphakala/go-lte-sync/internal/work"
)

// Default receiver parameters.
const (
	// DefaultTaps is the prototype filter length of the view resamplers.
	DefaultTaps = subframe.DefaultTaps

	// DefaultWorkers is the number of decode workers.
	DefaultWorkers = 2

	// DefaultBuffers is the number of work buffers in flight.
	DefaultBuffers = work.DefaultPoolSize
)

// Common errors returned by the receiver.
var (
	// ErrInvalidConfig indicates invalid configuration or missing
	// collaborators.
	ErrInvalidConfig = errors.New("invalid receiver configuration")

	// ErrNoMIB is what a MIBDecoder returns when the broadcast channel did
	// not decode. It counts as a miss.
	ErrNoMIB = cellsync.ErrNoMIB
)

// Config holds the receiver parameters.
type Config struct {
	// Taps is the prototype filter length of the sync and broadcast view
	// resamplers. Longer filters flatten the passband at a higher CPU cost.
	Taps int

	// Threshold is the PSS search magnitude that counts as a detection. It
	// is an absolute energy, not a normalized metric: the PSS symbol's
	// energy in sync view units (sc16 counts / 127) summed over channels.
	// The default of 900 suits a PSS around 476 sc16 counts RMS; raise or
	// lower it with the radio gain.
	Threshold float64

	// DetectThreshold is the normalized frequency domain PSS match below
	// which no sector is reported.
	DetectThreshold float64

	// SSSAverage is the number of SSS observations combined per decision;
	// SSSThreshold the normalized match a decision must reach.
	SSSAverage   int
	SSSThreshold float64

	// FrequencyCorrection enables the averaged carrier offset estimator
	// once the cell is known. FreqWindow is the number of estimates
	// averaged per correction.
	FrequencyCorrection bool
	FreqWindow          int

	// Workers is the number of decode workers and Buffers the number of
	// work buffers shared by them.
	Workers int
	Buffers int
}

// DefaultConfig returns the default receiver parameters.
func DefaultConfig() Config {
	return Config{
		Taps:                DefaultTaps,
		Threshold:           cellsync.DefaultThreshold,
		DetectThreshold:     detect.DefaultDetectThreshold,
		SSSAverage:          detect.DefaultSSSAverage,
		SSSThreshold:        detect.DefaultSSSThreshold,
		FrequencyCorrection: true,
		FreqWindow:          cellsync.DefaultFreqWindow,
		Workers:             DefaultWorkers,
		Buffers:             DefaultBuffers,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Taps < 1 {
		return fmt.Errorf("%w: taps must be positive", ErrInvalidConfig)
	}
	if c.Threshold <= 0 || c.DetectThreshold <= 0 || c.SSSThreshold <= 0 {
		return fmt.Errorf("%w: detection thresholds must be positive", ErrInvalidConfig)
	}
	if c.SSSAverage < 1 {
		return fmt.Errorf("%w: SSS averaging must be at least 1", ErrInvalidConfig)
	}
	if c.FreqWindow < 1 {
		return fmt.Errorf("%w: frequency window must be at least 1", ErrInvalidConfig)
	}
	if c.Workers < 1 || c.Buffers < 1 {
		return fmt.Errorf("%w: workers and buffers must be at least 1", ErrInvalidConfig)
	}
	return nil
}
