package radio

import (
	"context"
	"io"

	"github.com/tphakala/go-lte-sync/internal/testutil"
)

// step is one scripted Recv result.
type step struct {
	pkt Packet
	err error
}

// scriptStreamer replays steps and then reports io.EOF.
type scriptStreamer struct {
	chans  int
	rate   float64
	steps  []step
	recvs  int
	closed bool
}

func (s *scriptStreamer) Channels() int { return s.chans }
func (s *scriptStreamer) Rate() float64 { return s.rate }
func (s *scriptStreamer) Close() error  { s.closed = true; return nil }

func (s *scriptStreamer) Recv(ctx context.Context) (Packet, error) {
	if err := ctx.Err(); err != nil {
		return Packet{}, err
	}
	if s.recvs >= len(s.steps) {
		return Packet{}, io.EOF
	}
	st := s.steps[s.recvs]
	s.recvs++
	return st.pkt, st.err
}

// rampPacket returns a packet of n samples at ts on every channel whose
// values encode their timestamp.
func rampPacket(chans, n int, ts int64) Packet {
	p := Packet{TS: ts, Samples: make([][]int16, chans)}
	for ch := range chans {
		p.Samples[ch] = testutil.Ramp(n, int(ts))
	}
	return p
}

// rampStream returns count contiguous ramp packets starting at first.
func rampStream(chans, n, count int, first int64) *scriptStreamer {
	s := &scriptStreamer{chans: chans, rate: 1.92e6}
	for k := range count {
		s.steps = append(s.steps, step{pkt: rampPacket(chans, n, first+int64(k*n))})
	}
	return s
}
