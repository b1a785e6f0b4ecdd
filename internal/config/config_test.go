package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-lte-sync/internal/lte"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
}

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
radio:
  source: rtp
  address: 239.10.0.1:5004
  channels: 2
lte:
  resource_blocks: 50
sync:
  freq_window: 100
control:
  rnti: 0x1234
  subframes:
    0: off
    5: even
metrics:
  listen: :9100
`))
	require.NoError(t, err)

	assert.Equal(t, SourceRTP, cfg.Radio.Source)
	assert.Equal(t, "239.10.0.1:5004", cfg.Radio.Address)
	assert.Equal(t, 2, cfg.Radio.Channels)
	assert.Equal(t, 1920, cfg.Radio.PacketLen, "default kept")
	assert.Equal(t, 50, cfg.LTE.ResourceBlocks)
	assert.Equal(t, 16, cfg.LTE.Taps, "default kept")
	assert.Equal(t, 100, cfg.Sync.FreqWindow)
	assert.InDelta(t, 900, cfg.Sync.Threshold, 0)
	assert.Equal(t, uint16(0x1234), cfg.Control.RNTI)
	assert.Equal(t, map[int]string{0: "off", 5: "even"}, cfg.Control.Subframes)
	assert.Equal(t, ":9100", cfg.Metrics.Listen)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown source", "radio: {source: usb}"},
		{"rtp without address", "radio: {source: rtp, address: ''}"},
		{"wav without file", "radio: {source: wav}"},
		{"synth cell", "radio: {synth: {cell_id: 504}}"},
		{"channels", "radio: {channels: 0}"},
		{"ring", "radio: {ring_subframes: 2}"},
		{"bandwidth", "lte: {resource_blocks: 7}"},
		{"mib bandwidth", "lte: {mib: {resource_blocks: 0}}"},
		{"antennas", "lte: {mib: {antennas: 3}}"},
		{"phich", "lte: {mib: {phich: '1/3'}}"},
		{"taps", "lte: {taps: 2}"},
		{"threshold", "sync: {threshold: 0}"},
		{"detect threshold", "sync: {detect_threshold: 1.5}"},
		{"sss average", "sync: {sss_average: 0}"},
		{"workers", "work: {workers: 0}"},
		{"subframe number", "control: {subframes: {10: all}}"},
		{"subframe mode", "control: {subframes: {3: sometimes}}"},
		{"log level", "log: {level: loud}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte("radio: [unterminated"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Work.Workers = 0
	cfg.Work.Buffers = 0
	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "work.workers")
	assert.Contains(t, err.Error(), "work.buffers")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lte-sync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("radio: {source: wav, file: capture.wav}\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "capture.wav", cfg.Radio.File)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestParsePHICH(t *testing.T) {
	tests := map[string]lte.PHICHGroups{
		"1/6": lte.NgSixth,
		"1/2": lte.NgHalf,
		"1":   lte.NgOne,
		"2":   lte.NgTwo,
	}
	for in, want := range tests {
		got, err := ParsePHICH(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParsePHICH("")
	require.Error(t, err)
}

func TestLTE_Bandwidth(t *testing.T) {
	bw, err := LTE{}.Bandwidth()
	require.NoError(t, err)
	assert.Equal(t, lte.RB6, bw)

	bw, err = LTE{ResourceBlocks: 75}.Bandwidth()
	require.NoError(t, err)
	assert.Equal(t, lte.RB75, bw)

	_, err = LTE{ResourceBlocks: 7}.Bandwidth()
	require.ErrorIs(t, err, lte.ErrBandwidth)
}
