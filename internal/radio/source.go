// Package radio moves timestamped sc16 samples from a sample stream into
// per-channel rings and reads them back as timing-corrected subframes.
package radio

import "context"

// Packet is one run of samples from a Streamer. Samples holds interleaved
// sc16 pairs per channel, all of the same length.
type Packet struct {
	TS      int64
	Samples [][]int16
}

// Len returns the number of complex samples per channel.
func (p Packet) Len() int {
	if len(p.Samples) == 0 {
		return 0
	}
	return len(p.Samples[0]) / 2
}

// Streamer is the sample transport under a Device. Recv blocks for the
// next packet; the packet's slices stay valid until the next call.
type Streamer interface {
	Channels() int
	Rate() float64
	Recv(ctx context.Context) (Packet, error)
	Close() error
}

// Source is the sample supply the subframe reader consumes.
type Source interface {
	Channels() int
	Rate() float64

	// Pull borrows n samples per channel at ts into bufs. The borrow stays
	// valid until Commit.
	Pull(bufs [][]int16, n int, ts int64) error
	Commit(bufs [][]int16) error

	// Reload blocks until at least one more packet has been stored.
	Reload(ctx context.Context) error

	// High returns the timestamp one past the newest stored sample; Low the
	// oldest.
	High() int64
	Low() int64

	ShiftFrequency(hz float64)
	ResetFrequency()
	ResetTimebase()
}
