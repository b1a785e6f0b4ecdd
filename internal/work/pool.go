// Package work distributes stamped subframes from the sync loop to the
// decode workers through a bounded pool of reusable buffers.
//
// Buffers circulate between two queues: the free queue, pre-populated with
// every buffer, and the work queue. The sync loop takes a free buffer
// without blocking, fills it and submits it; a worker decodes it and
// releases it back to the free queue whatever the outcome. The pool never
// grows, so an exhausted pool means the sync loop drops the subframe.
package work

import (
	"errors"
	"sync"

	"github.com/tphakala/go-lte-sync/internal/lte"
)

// DefaultPoolSize is the number of buffers in flight by default.
const DefaultPoolSize = 64

// ErrClosed is returned when submitting to a closed pool.
var ErrClosed = errors.New("work: pool closed")

// Buffer is one stamped subframe on its way to a decoder.
type Buffer struct {
	Bandwidth   lte.Bandwidth
	CellID      int
	TxAntennas  int
	PHICHGroups lte.PHICHGroups
	Time        lte.Time
	RNTI        uint16

	// Samples holds one interleaved sc16 subframe per receive channel.
	Samples [][]int16

	// DecodeOK is set by the worker when the decoder confirmed the subframe.
	// The sync loop clears it once it has acted on it.
	DecodeOK bool
}

// Pool is a fixed set of Buffers shared by the sync loop and the workers.
type Pool struct {
	free chan *Buffer
	work chan *Buffer

	mu     sync.Mutex
	closed bool
}

// NewPool allocates size buffers of chans channels holding samples complex
// samples each.
func NewPool(size, chans, samples int) *Pool {
	p := &Pool{
		free: make(chan *Buffer, size),
		work: make(chan *Buffer, size),
	}

	for range size {
		b := &Buffer{Samples: make([][]int16, chans), CellID: lte.InvalidCellID}
		for ch := range b.Samples {
			b.Samples[ch] = make([]int16, 2*samples)
		}
		p.free <- b
	}

	return p
}

// TryAcquire takes a free buffer without blocking.
func (p *Pool) TryAcquire() (*Buffer, bool) {
	select {
	case b := <-p.free:
		return b, true
	default:
		return nil, false
	}
}

// Submit queues b for decoding.
func (p *Pool) Submit(b *Buffer) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		p.free <- b
		return ErrClosed
	}
	p.work <- b
	return nil
}

// Release returns b to the free queue.
func (p *Pool) Release(b *Buffer) {
	p.free <- b
}

// Work is the queue the decode workers consume. It is closed by Close.
func (p *Pool) Work() <-chan *Buffer { return p.work }

// Free returns the number of buffers currently free.
func (p *Pool) Free() int { return len(p.free) }

// Pending returns the number of buffers waiting for a worker.
func (p *Pool) Pending() int { return len(p.work) }

// Close stops accepting work. Workers finish the queued buffers and exit.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.closed {
		p.closed = true
		close(p.work)
	}
}
