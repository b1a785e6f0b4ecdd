// Command analyze-filter reports the response of the decimation filters the
// receiver builds for each LTE bandwidth: partition DC gain, passband droop
// across the synchronization signal, worst-case alias rejection and the
// coefficient memory each resampler holds.
package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/spf13/pflag"

	"github.com/tphakala/go-lte-sync/internal/filter"
	"github.com/tphakala/go-lte-sync/internal/lte"
	"github.com/tphakala/go-lte-sync/internal/subframe"
)

const (
	defaultPoints = 4096

	// Fraction of a view's bandwidth occupied by the 62 PSS/SSS subcarriers
	// (62 * 15 kHz over 960 kHz).
	occupiedFraction = 62.0 * 15e3 / 960e3
)

// report is the analysis of one decimation filter.
type report struct {
	Name        string
	Q           int
	Taps        int
	DCGain      float64
	PassbandDB  float64 // lowest gain inside the occupied band
	StopbandDB  float64 // highest gain on frequencies that alias into it
	HasStopband bool
	Bytes       int64 // coefficient memory of the filter bank
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, w io.Writer) error {
	fs := pflag.NewFlagSet("analyze-filter", pflag.ContinueOnError)
	taps := fs.Int("taps", subframe.DefaultTaps, "Filter taps per polyphase partition")
	points := fs.Int("points", defaultPoints, "Frequency response points")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Fprintln(w, "=== Decimation Filter Analysis ===")
	fmt.Fprintf(w, "%-10s %-10s %4s %10s %12s %12s %8s\n", "bandwidth", "view", "Q", "DC gain", "passband dB", "stopband dB", "bytes")
	for _, bw := range lte.Bandwidths() {
		for _, view := range []struct {
			name string
			q    int
		}{
			{"sync", bw.SyncQ()},
			{"broadcast", bw.BroadcastQ()},
		} {
			r, err := analyze(view.name, view.q, *taps, *points)
			if err != nil {
				return fmt.Errorf("%s %s: %w", bw, view.name, err)
			}
			stop := "-"
			if r.HasStopband {
				stop = fmt.Sprintf("%.1f", r.StopbandDB)
			}
			fmt.Fprintf(w, "%-10s %-10s %4d %10.6f %12.3f %12s %8d\n", bw, r.Name, r.Q, r.DCGain, r.PassbandDB, stop, r.Bytes)
		}
	}
	return nil
}

// analyze designs the 1/q filter the receiver uses and measures it at the
// native rate.
func analyze(name string, q, taps, points int) (report, error) {
	fb, err := filter.DesignFilterBank(filter.PrototypeParams{Interp: 1, Decim: q, TapsPerPhase: taps, Factor: 1})
	if err != nil {
		return report{}, err
	}

	r := report{
		Name:       name,
		Q:          q,
		Taps:       taps,
		DCGain:     fb.PartitionDCGain(0),
		PassbandDB: math.Inf(1),
		StopbandDB: math.Inf(-1),
		Bytes:      fb.GetMemoryUsage(),
	}

	// The view spans [-0.5/q, 0.5/q] of the native rate; content beyond
	// 1/q - edge folds onto the occupied band after decimation.
	edge := 0.5 * occupiedFraction / float64(q)
	alias := 1/float64(q) - edge
	resp := fb.ComputeFrequencyResponse(points)
	for k, f := range resp.Frequencies {
		db := filter.MagnitudeDB(resp.Magnitude[k])
		switch {
		case f <= edge:
			r.PassbandDB = min(r.PassbandDB, db)
		case q > 1 && f >= alias:
			r.HasStopband = true
			r.StopbandDB = max(r.StopbandDB, db)
		}
	}
	return r, nil
}
