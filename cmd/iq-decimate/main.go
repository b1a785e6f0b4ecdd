// Command iq-decimate resamples a 16-bit IQ WAV capture by a rational
// factor with the receiver's polyphase filterbank.
//
// Each pair of WAV channels carries the I and Q of one receive channel.
//
// Usage:
//
//	iq-decimate -p 1 -q 16 capture_30M72.wav capture_1M92.wav
//	iq-decimate --to-rb 6 capture_30M72.wav capture_1M92.wav   # rate of a 6 RB cell
//	iq-decimate --taps 256 --fast -q 2 in.wav out.wav          # float32 precision
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
)

const (
	defaultTaps     = 64
	minRequiredArgs = 2
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal("iq-decimate failed", "err", err)
	}
}

// options are the parsed command line settings.
type options struct {
	p, q    int
	toRB    int
	taps    int
	fast    bool
	verbose bool
	input   string
	output  string
}

func run(args []string) error {
	opts, err := parseArgs(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	level := log.InfoLevel
	if opts.verbose {
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{Level: level})

	start := time.Now()
	var stats *decimateStats
	if opts.fast {
		stats, err = decimateWAV[float32](opts, logger)
	} else {
		stats, err = decimateWAV[float64](opts, logger)
	}
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	fmt.Printf("Resampled %s -> %s\n", filepath.Base(opts.input), filepath.Base(opts.output))
	fmt.Printf("  %d Hz -> %d Hz (%d IQ channels, ratio %d/%d)\n",
		stats.inputRate, stats.outputRate, stats.channels, stats.p, stats.q)
	fmt.Printf("  %d samples -> %d samples\n", stats.inputSamples, stats.outputSamples)
	fmt.Printf("  Duration: %.2fs, Speed: %.1fx realtime\n",
		elapsed.Seconds(),
		float64(stats.inputSamples)/float64(stats.inputRate)/elapsed.Seconds())
	return nil
}

func parseArgs(args []string) (options, error) {
	fs := pflag.NewFlagSet("iq-decimate", pflag.ContinueOnError)
	var opts options
	fs.IntVarP(&opts.p, "interp", "p", 1, "Interpolation factor P")
	fs.IntVarP(&opts.q, "decim", "q", 2, "Decimation factor Q")
	fs.IntVar(&opts.toRB, "to-rb", 0, "Derive P/Q from the input rate to the rate of this many resource blocks")
	fs.IntVar(&opts.taps, "taps", defaultTaps, "Filter taps per polyphase partition")
	fs.BoolVar(&opts.fast, "fast", false, "Use float32 precision")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: iq-decimate [options] input.wav output.wav\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() < minRequiredArgs {
		fs.Usage()
		return opts, errors.New("insufficient arguments")
	}
	if opts.p < 1 || opts.q < 1 || opts.taps < 1 {
		return opts, fmt.Errorf("P, Q and taps must be positive (got %d, %d, %d)", opts.p, opts.q, opts.taps)
	}
	opts.input, opts.output = fs.Arg(0), fs.Arg(1)
	return opts, nil
}
