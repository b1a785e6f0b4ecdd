package main

import (
	"context"
	"math"

	"github.com/charmbracelet/log"

	ltesync "github.com/tphakala/go-lte-sync"
	"github.com/tphakala/go-lte-sync/internal/config"
	"github.com/tphakala/go-lte-sync/internal/lte"
)

// silenceFloor is the mean sample power below which a broadcast view is
// treated as empty.
const silenceFloor = 1e-9

// staticMIB stands in for a PBCH decoder: any broadcast view carrying
// signal "decodes" to the configured block, with the frame counter
// advancing by one per decode.
type staticMIB struct {
	mib lte.MIB
}

func newStaticMIB(c config.MIB) (*staticMIB, error) {
	bw, err := lte.ParseBandwidth(c.ResourceBlocks)
	if err != nil {
		return nil, err
	}
	ng, err := config.ParsePHICH(c.PHICH)
	if err != nil {
		return nil, err
	}
	return &staticMIB{mib: lte.MIB{Bandwidth: bw, Antennas: c.Antennas, PHICHGroups: ng}}, nil
}

func (d *staticMIB) Decode(_ context.Context, views []ltesync.Vector, _ lte.CellID) (lte.MIB, error) {
	if meanPower(views) < silenceFloor {
		return lte.MIB{}, ltesync.ErrNoMIB
	}
	mib := d.mib
	d.mib.Frame = (d.mib.Frame + 1) % lte.FrameWrap
	return mib, nil
}

func meanPower(views []ltesync.Vector) float64 {
	var sum float64
	var n int
	for _, v := range views {
		sum += v.Power() * float64(v.Len())
		n += v.Len()
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// powerMeter is the data decoder of the binary. It logs the power of each
// dispatched subframe and never claims a decode.
type powerMeter struct {
	log *log.Logger
}

func newPowerMeter(logger *log.Logger) *powerMeter {
	return &powerMeter{log: logger}
}

func (p *powerMeter) Decode(_ context.Context, b *ltesync.Buffer) (bool, error) {
	p.log.Debug("subframe", "time", b.Time, "cell", b.CellID, "power_db", subframePowerDB(b.Samples))
	return false, nil
}

// subframePowerDB returns the mean sample power of sc16 buffers in dB
// relative to one unit squared.
func subframePowerDB(samples [][]int16) float64 {
	var sum float64
	var n int
	for _, buf := range samples {
		for _, s := range buf {
			sum += float64(s) * float64(s)
		}
		n += len(buf) / 2
	}
	if n == 0 || sum == 0 {
		return math.Inf(-1)
	}
	return 10 * math.Log10(sum/float64(n))
}

// cellLogger reports identity changes.
type cellLogger struct {
	log *log.Logger
}

func (c cellLogger) Configure(cell lte.CellID, bw lte.Bandwidth) error {
	c.log.Info("cell references rebuilt", "cell", cell, "bandwidth", bw)
	return nil
}
