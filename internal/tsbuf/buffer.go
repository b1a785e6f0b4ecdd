// Package tsbuf implements a circular store of interleaved sc16 sample pairs
// addressed by sample timestamp rather than by buffer offset.
//
// The producer writes contiguous timestamped runs as they arrive from the
// radio; the consumer reads arbitrary sub-ranges of the valid window
// [Start, End). Reads consume: everything before the end of a read is
// released. A read may still reach back into released samples the ring has
// not yet overwritten, provided it ends at or after Start, which is how the
// subframe reader applies negative timing corrections. A write that skips
// ahead of End leaves the skipped range reading as zeros.
//
// Lengths and timestamps count complex samples, so a run of n samples
// occupies 2n int16 values.
package tsbuf

import (
	"errors"
	"fmt"
	"sync"
)

// Sentinel errors.
var (
	// ErrTimestamp reports a requested range that lies outside the valid
	// window, or a write that does not extend it.
	ErrTimestamp = errors.New("sample buffer: requested timestamp is not valid")

	// ErrOverflow reports that the producer overtook unconsumed samples.
	// The write is applied and the oldest samples are dropped, so the
	// buffer stays consistent and the condition is recoverable.
	ErrOverflow = errors.New("sample buffer: overrun")

	// ErrMemory reports a zero-copy borrow violation: a second borrow of the
	// same kind before the first was committed, or a commit of a slice that
	// was not borrowed.
	ErrMemory = errors.New("sample buffer: memory error")
)

// tag tracks one outstanding zero-copy borrow.
type tag struct {
	active  bool
	buf     []int16
	ts      int64 // write tags only
	n       int
	wrapped bool // buf is scratch rather than a window into data
}

// Buffer is a timestamp-indexed ring of sc16 samples. It is safe for one
// producer and one consumer goroutine.
type Buffer struct {
	data     []int16
	capacity int

	timeStart int64
	timeEnd   int64
	timeFloor int64 // oldest sample still held, consumed or not
	dataStart int
	dataEnd   int
	started   bool

	rdTag     tag
	wrTag     tag
	rdScratch []int16
	wrScratch []int16

	mu sync.Mutex
}

// New creates a buffer holding up to capacity-1 samples.
func New(capacity int) *Buffer {
	if capacity < minCapacity {
		capacity = minCapacity
	}

	return &Buffer{
		data:     make([]int16, samplePair*capacity),
		capacity: capacity,
	}
}

// Capacity returns the buffer size in samples.
func (b *Buffer) Capacity() int { return b.capacity }

// Reset clears the timestamp and offset markers and drops any outstanding
// borrows. Used when the radio timeline restarts.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.timeStart, b.timeEnd, b.timeFloor = 0, 0, 0
	b.dataStart, b.dataEnd = 0, 0
	b.started = false
	b.rdTag = tag{}
	b.wrTag = tag{}
}

// Start returns the timestamp of the oldest valid sample.
func (b *Buffer) Start() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.timeStart
}

// End returns the timestamp one past the newest valid sample.
func (b *Buffer) End() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.timeEnd
}

// Avail returns the number of valid samples at or after ts.
func (b *Buffer) Avail(ts int64) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ts >= b.timeEnd {
		return 0
	}
	return b.timeEnd - ts
}

// Write copies the samples in src into the buffer starting at timestamp ts.
// The end of the write must lie beyond the current window end. A write of
// zero samples only moves the window end, recording a timestamp heartbeat.
// Writes must not exceed the buffer capacity; callers chunk larger runs.
func (b *Buffer) Write(src []int16, ts int64) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(src) / samplePair
	if err := b.checkWrite(n, ts); err != nil {
		return 0, err
	}

	b.clearGap(n, ts)
	wr := b.begin(ts)
	b.copyIn(wr, src[:samplePair*n])

	return n, b.advance(wr, n, ts)
}

// WriteBuf borrows space for n samples at timestamp ts. The caller fills
// the returned slice and hands it back to CommitWrite, which publishes the
// samples. Only one write borrow may be outstanding.
func (b *Buffer) WriteBuf(n int, ts int64) ([]int16, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.wrTag.active {
		return nil, fmt.Errorf("%w: write borrow outstanding", ErrMemory)
	}
	if err := b.checkWrite(n, ts); err != nil {
		return nil, err
	}

	wr := b.indexAfterBegin(ts)

	var buf []int16
	wrapped := wr+n > b.capacity
	if wrapped {
		b.wrScratch = grow(b.wrScratch, samplePair*n)
		buf = b.wrScratch
	} else {
		buf = b.data[samplePair*wr : samplePair*(wr+n)]
	}

	b.wrTag = tag{active: true, buf: buf, ts: ts, n: n, wrapped: wrapped}

	return buf, nil
}

// CommitWrite publishes a slice obtained from WriteBuf.
func (b *Buffer) CommitWrite(buf []int16) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := b.wrTag
	if !t.active || !sameSlice(buf, t.buf) {
		return fmt.Errorf("%w: commit of unknown write buffer", ErrMemory)
	}
	b.wrTag = tag{}

	// The window may have moved since the borrow; revalidate.
	if err := b.checkWrite(t.n, t.ts); err != nil {
		return err
	}

	b.clearGap(t.n, t.ts)
	wr := b.begin(t.ts)
	if t.wrapped {
		b.copyIn(wr, t.buf)
	}

	return b.advance(wr, t.n, t.ts)
}

// Read copies len(dst)/2 samples starting at timestamp ts into dst and
// releases everything up to the end of the read.
func (b *Buffer) Read(dst []int16, ts int64) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(dst) / samplePair
	if err := b.checkRead(n, ts); err != nil {
		return 0, err
	}

	rd := b.index(ts)
	b.copyOut(dst[:samplePair*n], rd)
	b.consume(rd, n, ts)

	return n, nil
}

// Peek copies like Read without consuming.
func (b *Buffer) Peek(dst []int16, ts int64) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(dst) / samplePair
	if err := b.checkRead(n, ts); err != nil {
		return 0, err
	}

	b.copyOut(dst[:samplePair*n], b.index(ts))

	return n, nil
}

// ReadBuf returns n samples starting at ts without copying when the range
// is contiguous in the ring, or as an assembled scratch copy when it wraps.
// The range is consumed immediately; the slice stays valid until it is
// handed back to CommitRead. Only one read borrow may be outstanding.
func (b *Buffer) ReadBuf(n int, ts int64) ([]int16, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.rdTag.active {
		return nil, fmt.Errorf("%w: read borrow outstanding", ErrMemory)
	}
	if err := b.checkRead(n, ts); err != nil {
		return nil, err
	}

	rd := b.index(ts)

	var buf []int16
	wrapped := rd+n > b.capacity
	if wrapped {
		b.rdScratch = grow(b.rdScratch, samplePair*n)
		buf = b.rdScratch
		b.copyOut(buf, rd)
	} else {
		buf = b.data[samplePair*rd : samplePair*(rd+n)]
	}

	b.consume(rd, n, ts)
	b.rdTag = tag{active: true, buf: buf, n: n, wrapped: wrapped}

	return buf, nil
}

// CommitRead releases a slice obtained from ReadBuf.
func (b *Buffer) CommitRead(buf []int16) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.rdTag.active || !sameSlice(buf, b.rdTag.buf) {
		return fmt.Errorf("%w: commit of unknown read buffer", ErrMemory)
	}
	b.rdTag = tag{}

	return nil
}

func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return fmt.Sprintf("sample buffer: length=%d time_start=%d time_end=%d data_start=%d data_end=%d",
		b.capacity, b.timeStart, b.timeEnd, b.dataStart, b.dataEnd)
}

func (b *Buffer) checkWrite(n int, ts int64) error {
	if n >= b.capacity {
		return fmt.Errorf("%w: write of %d samples exceeds capacity %d", ErrOverflow, n, b.capacity)
	}
	if ts < 0 || ts+int64(n) <= b.timeEnd {
		return fmt.Errorf("%w: write [%d, %d) does not extend end %d",
			ErrTimestamp, ts, ts+int64(n), b.timeEnd)
	}
	return nil
}

func (b *Buffer) checkRead(n int, ts int64) error {
	if n >= b.capacity {
		return fmt.Errorf("%w: read of %d samples exceeds capacity %d", ErrTimestamp, n, b.capacity)
	}
	end := ts + int64(n)
	if ts < b.timeFloor || end < b.timeStart || end > b.timeEnd {
		return fmt.Errorf("%w: read [%d, %d) outside window [%d, %d)",
			ErrTimestamp, ts, end, b.timeStart, b.timeEnd)
	}
	return nil
}

// begin anchors the timeline on the first write and returns the physical
// offset of ts.
func (b *Buffer) begin(ts int64) int {
	if !b.started {
		b.started = true
		b.timeStart, b.timeEnd, b.timeFloor = ts, ts, ts
		b.dataStart, b.dataEnd = 0, 0
	}
	return b.index(ts)
}

// indexAfterBegin returns the offset ts would have without anchoring.
func (b *Buffer) indexAfterBegin(ts int64) int {
	if !b.started {
		return 0
	}
	return b.index(ts)
}

// index maps a timestamp to its physical offset.
func (b *Buffer) index(ts int64) int {
	c := int64(b.capacity)
	off := (int64(b.dataStart) + (ts-b.timeStart)%c) % c
	if off < 0 {
		off += c
	}
	return int(off)
}

// clearGap zeroes the samples a write of n at ts skips past the window end,
// as far back as the window will reach once the write lands. The range
// never overlaps the write itself.
func (b *Buffer) clearGap(n int, ts int64) {
	if !b.started || ts <= b.timeEnd {
		return
	}
	z := int(min(ts-b.timeEnd, int64(b.capacity-1-n)))
	if z <= 0 {
		return
	}

	lo := samplePair * b.index(ts-int64(z))
	hi := lo + samplePair*z
	if hi <= len(b.data) {
		clear(b.data[lo:hi])
		return
	}
	clear(b.data[lo:])
	clear(b.data[:hi-len(b.data)])
}

// advance moves the window end past a write of n samples at offset wr and
// drops the oldest samples if the window outgrew the ring.
func (b *Buffer) advance(wr, n int, ts int64) error {
	b.timeEnd = ts + int64(n)
	b.dataEnd = (wr + n) % b.capacity

	limit := int64(b.capacity - 1)
	b.timeFloor = max(b.timeFloor, b.timeEnd-limit)
	if b.timeEnd-b.timeStart <= limit {
		return nil
	}

	lost := b.timeEnd - limit - b.timeStart
	b.timeStart = b.timeEnd - limit
	b.dataStart = (b.dataEnd + 1) % b.capacity

	return fmt.Errorf("%w: dropped %d samples, %s", ErrOverflow, lost, b.statusLocked())
}

func (b *Buffer) consume(rd, n int, ts int64) {
	b.dataStart = (rd + n) % b.capacity
	b.timeStart = ts + int64(n)
}

// copyIn writes interleaved src at physical offset wr, splitting across the
// wrap boundary.
func (b *Buffer) copyIn(wr int, src []int16) {
	first := copy(b.data[samplePair*wr:], src)
	copy(b.data, src[first:])
}

// copyOut fills dst from physical offset rd, splitting across the wrap
// boundary.
func (b *Buffer) copyOut(dst []int16, rd int) {
	first := copy(dst, b.data[samplePair*rd:])
	copy(dst[first:], b.data)
}

func (b *Buffer) statusLocked() string {
	return fmt.Sprintf("time_start=%d time_end=%d", b.timeStart, b.timeEnd)
}

func grow(buf []int16, n int) []int16 {
	if cap(buf) < n {
		return make([]int16, n)
	}
	return buf[:n]
}

func sameSlice(a, b []int16) bool {
	if len(a) != len(b) {
		return false
	}
	return len(a) == 0 || &a[0] == &b[0]
}
