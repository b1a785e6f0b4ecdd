package work

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/go-lte-sync/internal/telemetry"
)

// Decoder processes one stamped subframe. It reports whether the subframe
// decoded successfully; errors are logged and treated as a failed decode.
type Decoder interface {
	Decode(ctx context.Context, b *Buffer) (bool, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(ctx context.Context, b *Buffer) (bool, error)

// Decode calls f.
func (f DecoderFunc) Decode(ctx context.Context, b *Buffer) (bool, error) { return f(ctx, b) }

// Workers runs n decode workers over the pool until the pool is closed and
// drained or ctx is cancelled. Cancellation is a normal shutdown.
func Workers(ctx context.Context, p *Pool, n int, dec Decoder, logger *log.Logger, metrics *telemetry.Metrics) error {
	if logger == nil {
		logger = log.Default()
	}
	g, ctx := errgroup.WithContext(ctx)

	for id := range max(n, 1) {
		wlog := logger.With("worker", id)
		g.Go(func() error {
			return worker(ctx, p, dec, wlog, metrics)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func worker(ctx context.Context, p *Pool, dec Decoder, logger *log.Logger, metrics *telemetry.Metrics) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b, ok := <-p.Work():
			if !ok {
				return nil
			}

			decoded, err := dec.Decode(ctx, b)
			if err != nil {
				logger.Debug("decode failed", "time", b.Time, "err", err)
				decoded = false
			}
			b.DecodeOK = decoded
			metrics.RecordDecode(decoded)
			p.Release(b)
		}
	}
}
