package radio

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-lte-sync/internal/testutil"
)

func newLoopbackRTP(t *testing.T, ssrc uint32) (*RTPStreamer, *net.UDPConn) {
	t.Helper()
	s, err := NewRTPStreamer(context.Background(), RTPConfig{
		Address:  "127.0.0.1:0",
		Channels: 2,
		Rate:     1.92e6,
		SSRC:     ssrc,
	}, log.New(io.Discard))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	conn, err := net.DialUDP("udp4", nil, s.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return s, conn
}

func sendRTP(t *testing.T, conn *net.UDPConn, ssrc, ts uint32, seq uint16, payload []byte) {
	t.Helper()
	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    96,
			SequenceNumber: seq,
			Timestamp:      ts,
			SSRC:           ssrc,
		},
		Payload: payload,
	}
	raw, err := pkt.Marshal()
	require.NoError(t, err)
	_, err = conn.Write(raw)
	require.NoError(t, err)
}

func TestRTPStreamer_ReceivesSamples(t *testing.T) {
	const ssrc = 0x1234
	s, conn := newLoopbackRTP(t, ssrc)
	assert.Equal(t, 2, s.Channels())
	assert.InDelta(t, 1.92e6, s.Rate(), 0)

	samples := [][]int16{testutil.Ramp(50, 100), testutil.Ramp(50, -300)}

	_, err := conn.Write([]byte{1, 2, 3})
	require.NoError(t, err)
	sendRTP(t, conn, 0x9999, 0, 1, EncodeSC16(samples)) // foreign stream
	sendRTP(t, conn, ssrc, 0, 2, []byte{1, 2, 3, 4, 5}) // partial frame
	sendRTP(t, conn, ssrc, 4000, 3, EncodeSC16(samples))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pkt, err := s.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4000), pkt.TS)
	assert.Equal(t, 50, pkt.Len())
	assert.Equal(t, samples, pkt.Samples)
}

func TestRTPStreamer_RecvHonoursContext(t *testing.T) {
	s, _ := newLoopbackRTP(t, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := s.Recv(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRTPStreamer_Unwrap(t *testing.T) {
	s := &RTPStreamer{}
	assert.Equal(t, int64(0xFFFFFF00), s.unwrap(0xFFFFFF00))
	assert.Equal(t, int64(0xFFFFFF00+0x200), s.unwrap(0x00000100), "wraps forward")
	assert.Equal(t, int64(0xFFFFFF00+0x100), s.unwrap(0x00000000), "steps back")
}

func TestRTPStreamer_Validation(t *testing.T) {
	_, err := NewRTPStreamer(context.Background(), RTPConfig{Address: "127.0.0.1:0"}, nil)
	require.ErrorIs(t, err, ErrConfig)

	_, err = NewRTPStreamer(context.Background(), RTPConfig{Address: "not an address", Channels: 1, Rate: 1}, nil)
	require.ErrorIs(t, err, ErrConfig)
}

func TestEncodeSC16_Layout(t *testing.T) {
	out := EncodeSC16([][]int16{{1, -2}, {3, 4}})
	assert.Equal(t, []byte{0x00, 0x01, 0xff, 0xfe, 0x00, 0x03, 0x00, 0x04}, out)
	assert.Nil(t, EncodeSC16(nil))
}
