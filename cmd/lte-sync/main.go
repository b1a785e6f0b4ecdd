// Command lte-sync synchronizes to an LTE downlink and dispatches its
// subframes to the decode workers.
//
// Usage:
//
//	lte-sync --config lte-sync.yaml
//	lte-sync --source rtp --address 239.1.2.3:5004 --channels 2
//	lte-sync --source wav --file capture.wav --acquire
//	lte-sync --source synth --cell-id 301 --metrics-listen :9100
//
// Without a configuration file a synthetic downlink is generated, which
// exercises the whole receiver without a radio.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	ltesync "github.com/tphakala/go-lte-sync"
	"github.com/tphakala/go-lte-sync/internal/config"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 5 * time.Second
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal("lte-sync failed", "err", err)
	}
}

// options are the command line settings that are not part of the
// configuration file.
type options struct {
	configPath string
	acquire    bool
}

func run(args []string) error {
	cfg, opts, err := parseArgs(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Level:           level,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	metrics := ltesync.NewMetrics(reg)

	stream, err := openStream(ctx, cfg, logger)
	if err != nil {
		return err
	}
	bw, err := streamBandwidth(stream)
	if err != nil {
		_ = stream.Close()
		return err
	}
	dev, err := ltesync.NewDevice(stream, cfg.Radio.RingSubframes*bw.SubframeLen(), logger.WithPrefix("radio"), metrics)
	if err != nil {
		_ = stream.Close()
		return err
	}
	defer func() { _ = dev.Close() }()

	mib, err := newStaticMIB(cfg.LTE.MIB)
	if err != nil {
		return err
	}
	rx, err := ltesync.New(receiverConfig(cfg), ltesync.Collaborators{
		Source:  dev,
		MIB:     mib,
		Decoder: newPowerMeter(logger.WithPrefix("power")),
		Cell:    cellLogger{log: logger},
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		return err
	}
	if err := applyControl(rx, cfg.Control); err != nil {
		return err
	}

	logger.Info("receiver ready", "source", cfg.Radio.Source, "bandwidth", bw, "channels", dev.Channels())

	if opts.acquire {
		m, err := rx.Acquire(ctx)
		if err != nil {
			return err
		}
		st := rx.Status()
		fmt.Printf("cell %d (sector %d, group %d): %s, %d antennas, PHICH Ng %s, frame %d\n",
			st.Cell.ID(), st.Cell.Sector, st.Cell.Group, m.Bandwidth, m.Antennas, m.PHICHGroups, m.Frame)
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Metrics.Listen != "" {
		g.Go(func() error { return serveMetrics(gctx, cfg.Metrics.Listen, reg, logger) })
	}
	g.Go(func() error {
		defer stop()
		return rx.Run(gctx)
	})
	return g.Wait()
}

// parseArgs loads the configuration file, if any, and applies the command
// line overrides on top of it.
func parseArgs(args []string) (config.Config, options, error) {
	fs := pflag.NewFlagSet("lte-sync", pflag.ContinueOnError)
	var opts options
	fs.StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	fs.BoolVar(&opts.acquire, "acquire", false, "Stop after the first decoded MIB and print the cell")

	source := fs.String("source", "", "Sample source: rtp, wav or synth")
	address := fs.String("address", "", "RTP group or unicast address, host:port")
	iface := fs.String("interface", "", "Network interface for the multicast join")
	file := fs.String("file", "", "WAV capture to replay")
	channels := fs.Int("channels", 0, "Receive channels")
	rbs := fs.Int("resource-blocks", 0, "Bandwidth of rtp and synth sources in resource blocks")
	cellID := fs.Int("cell-id", 0, "Physical cell identity of the synthetic downlink")
	workers := fs.Int("workers", 0, "Decode workers")
	rnti := fs.Uint16("rnti", 0, "RNTI stamped on dispatched subframes")
	level := fs.String("log-level", "", "Log level: debug, info, warn, error")
	listen := fs.String("metrics-listen", "", "Serve Prometheus metrics on host:port")

	if err := fs.Parse(args); err != nil {
		return config.Config{}, opts, err
	}

	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return config.Config{}, opts, err
		}
	}

	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}
	set("source", func() { cfg.Radio.Source = *source })
	set("address", func() { cfg.Radio.Address = *address })
	set("interface", func() { cfg.Radio.Interface = *iface })
	set("file", func() { cfg.Radio.File = *file })
	set("channels", func() { cfg.Radio.Channels = *channels })
	set("resource-blocks", func() { cfg.LTE.ResourceBlocks = *rbs })
	set("cell-id", func() { cfg.Radio.Synth.CellID = *cellID })
	set("workers", func() { cfg.Work.Workers = *workers })
	set("rnti", func() { cfg.Control.RNTI = *rnti })
	set("log-level", func() { cfg.Log.Level = *level })
	set("metrics-listen", func() { cfg.Metrics.Listen = *listen })

	if err := cfg.Validate(); err != nil {
		return config.Config{}, opts, err
	}
	return cfg, opts, nil
}

// receiverConfig maps the configuration file onto the receiver parameters.
func receiverConfig(cfg config.Config) ltesync.Config {
	rc := ltesync.DefaultConfig()
	rc.Taps = cfg.LTE.Taps
	rc.Threshold = cfg.Sync.Threshold
	rc.DetectThreshold = cfg.Sync.DetectThreshold
	rc.SSSAverage = cfg.Sync.SSSAverage
	rc.SSSThreshold = cfg.Sync.SSSThreshold
	rc.FrequencyCorrection = cfg.Sync.FreqCorrection
	rc.FreqWindow = cfg.Sync.FreqWindow
	rc.Workers = cfg.Work.Workers
	rc.Buffers = cfg.Work.Buffers
	return rc
}

func applyControl(rx *ltesync.Receiver, c config.Control) error {
	rx.SetRNTI(c.RNTI)
	for sf, name := range c.Subframes {
		mode, err := ltesync.ParseSubframeMode(name)
		if err != nil {
			return err
		}
		if err := rx.SetSubframeMode(sf, mode); err != nil {
			return err
		}
	}
	return nil
}

// serveMetrics serves /metrics until ctx is cancelled.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *log.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: readHeaderTimeout}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	logger.Info("serving metrics", "addr", addr)

	select {
	case err := <-errc:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	return nil
}
