package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	ltesync "github.com/tphakala/go-lte-sync"
	"github.com/tphakala/go-lte-sync/internal/config"
	"github.com/tphakala/go-lte-sync/internal/lte"
	"github.com/tphakala/go-lte-sync/internal/radio"
)

// openStream opens the sample stream selected by cfg.Radio.Source.
func openStream(ctx context.Context, cfg config.Config, logger *log.Logger) (ltesync.Streamer, error) {
	r := cfg.Radio
	switch r.Source {
	case config.SourceRTP:
		bw, err := cfg.LTE.Bandwidth()
		if err != nil {
			return nil, err
		}
		return radio.NewRTPStreamer(ctx, radio.RTPConfig{
			Address:    r.Address,
			Interface:  r.Interface,
			Channels:   r.Channels,
			Rate:       bw.SampleRate(),
			SSRC:       r.SSRC,
			ReadBuffer: r.ReadBuffer,
		}, logger.WithPrefix("rtp"))

	case config.SourceWAV:
		s, err := radio.OpenWAV(r.File, r.PacketLen, logger.WithPrefix("wav"))
		if err != nil {
			return nil, err
		}
		if s.Channels() != r.Channels {
			logger.Warn("capture channel count overrides the configuration", "file", s.Channels(), "config", r.Channels)
		}
		return s, nil

	case config.SourceSynth:
		bw, err := cfg.LTE.Bandwidth()
		if err != nil {
			return nil, err
		}
		return radio.NewSynthStreamer(radio.SynthConfig{
			Bandwidth: bw,
			Cell:      lte.CellFromID(r.Synth.CellID),
			Channels:  r.Channels,
			Gain:      r.Synth.Gain,
			Noise:     r.Synth.Noise,
			Offset:    r.Synth.Offset,
			Delay:     r.Synth.Delay,
			Subframes: r.Synth.Subframes,
			PacketLen: r.PacketLen,
			Seed:      r.Synth.Seed,
		})
	}
	return nil, fmt.Errorf("%w: unknown source %q", config.ErrInvalidConfig, r.Source)
}

// streamBandwidth maps the stream's sample rate to its LTE bandwidth.
func streamBandwidth(s ltesync.Streamer) (ltesync.Bandwidth, error) {
	bw, err := lte.BandwidthForRate(s.Rate())
	if err != nil {
		return 0, fmt.Errorf("sample stream: %w", err)
	}
	return bw, nil
}
