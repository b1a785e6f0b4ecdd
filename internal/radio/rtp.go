package radio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pion/rtp"
	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"
)

// RTPConfig describes an sc16 sample stream carried over RTP.
type RTPConfig struct {
	// Address is the host:port to receive on. Multicast groups are joined
	// on Interface, or on the system default when it is empty.
	Address   string
	Interface string

	Channels int
	Rate     float64

	// SSRC selects one stream on a shared group. Zero accepts any.
	SSRC uint32

	// ReadBuffer sets the socket receive buffer in bytes when nonzero.
	ReadBuffer int
}

// RTPStreamer receives big-endian sc16 samples from RTP packets. Channels
// are interleaved per sample; the RTP timestamp counts samples.
type RTPStreamer struct {
	cfg  RTPConfig
	conn *net.UDPConn
	buf  []byte

	samples [][]int16

	started bool
	lastRaw uint32
	ext     int64

	log *log.Logger
}

// NewRTPStreamer opens the socket described by cfg.
func NewRTPStreamer(ctx context.Context, cfg RTPConfig, logger *log.Logger) (*RTPStreamer, error) {
	if cfg.Channels < 1 || cfg.Rate <= 0 {
		return nil, fmt.Errorf("%w: %d channels at %g sps", ErrConfig, cfg.Channels, cfg.Rate)
	}
	addr, err := net.ResolveUDPAddr("udp4", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if logger == nil {
		logger = log.Default()
	}

	lc := net.ListenConfig{Control: reuseAddr}
	pc, err := lc.ListenPacket(ctx, "udp4", addr.String())
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	conn := pc.(*net.UDPConn)

	if cfg.ReadBuffer > 0 {
		if err := conn.SetReadBuffer(cfg.ReadBuffer); err != nil {
			logger.Warn("failed to set read buffer", "bytes", cfg.ReadBuffer, "err", err)
		}
	}

	if addr.IP.IsMulticast() {
		var iface *net.Interface
		if cfg.Interface != "" {
			if iface, err = net.InterfaceByName(cfg.Interface); err != nil {
				_ = conn.Close()
				return nil, fmt.Errorf("%w: interface %q: %w", ErrConfig, cfg.Interface, err)
			}
		}
		if err := ipv4.NewPacketConn(conn).JoinGroup(iface, addr); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("join %s: %w", addr, err)
		}
	}

	return newRTPStreamer(conn, cfg, logger), nil
}

func newRTPStreamer(conn *net.UDPConn, cfg RTPConfig, logger *log.Logger) *RTPStreamer {
	s := &RTPStreamer{
		cfg:     cfg,
		conn:    conn,
		buf:     make([]byte, maxDatagram),
		samples: make([][]int16, cfg.Channels),
		log:     logger.WithPrefix("rtp"),
	}
	logger.Info("sample stream listening", "addr", conn.LocalAddr(), "channels", cfg.Channels, "rate", cfg.Rate)
	return s
}

// reuseAddr lets several receivers share one multicast port.
func reuseAddr(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			sockErr = fmt.Errorf("set SO_REUSEADDR: %w", err)
			return
		}
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
			sockErr = fmt.Errorf("set SO_REUSEPORT: %w", err)
		}
	})
	if err != nil {
		return err
	}
	return sockErr
}

// Channels returns the number of channels per packet.
func (s *RTPStreamer) Channels() int { return s.cfg.Channels }

// Rate returns the sample rate.
func (s *RTPStreamer) Rate() float64 { return s.cfg.Rate }

// LocalAddr returns the bound socket address.
func (s *RTPStreamer) LocalAddr() net.Addr { return s.conn.LocalAddr() }

// Recv returns the next packet of the selected stream. Malformed packets
// and foreign SSRCs are skipped.
func (s *RTPStreamer) Recv(ctx context.Context) (Packet, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetReadDeadline(time.Now())
	})
	defer func() {
		stop()
		_ = s.conn.SetReadDeadline(time.Time{})
	}()

	for {
		n, err := s.conn.Read(s.buf)
		if err != nil {
			if ctx.Err() != nil {
				return Packet{}, ctx.Err()
			}
			return Packet{}, err
		}

		pkt := &rtp.Packet{}
		if err := pkt.Unmarshal(s.buf[:n]); err != nil {
			s.log.Debug("dropping malformed packet", "bytes", n, "err", err)
			continue
		}
		if s.cfg.SSRC != 0 && pkt.SSRC != s.cfg.SSRC {
			continue
		}
		if err := s.decode(pkt.Payload); err != nil {
			s.log.Debug("dropping packet", "seq", pkt.SequenceNumber, "err", err)
			continue
		}

		return Packet{TS: s.unwrap(pkt.Timestamp), Samples: s.samples}, nil
	}
}

// decode deinterleaves a big-endian sc16 payload into s.samples.
func (s *RTPStreamer) decode(payload []byte) error {
	frame := sc16Bytes * s.cfg.Channels
	if len(payload) == 0 || len(payload)%frame != 0 {
		return fmt.Errorf("payload of %d bytes is not a whole number of %d byte frames", len(payload), frame)
	}

	n := len(payload) / frame
	for ch := range s.samples {
		if cap(s.samples[ch]) < 2*n {
			s.samples[ch] = make([]int16, 2*n)
		}
		s.samples[ch] = s.samples[ch][:2*n]
	}

	for k := range n {
		for ch := range s.samples {
			off := k*frame + ch*sc16Bytes
			s.samples[ch][2*k] = int16(binary.BigEndian.Uint16(payload[off:]))
			s.samples[ch][2*k+1] = int16(binary.BigEndian.Uint16(payload[off+2:]))
		}
	}
	return nil
}

// unwrap extends the 32-bit RTP timestamp. Steps are taken as signed, so a
// reordered packet comes out below its predecessor.
func (s *RTPStreamer) unwrap(raw uint32) int64 {
	if !s.started {
		s.started = true
		s.ext = int64(raw)
	} else {
		s.ext += int64(int32(raw - s.lastRaw))
	}
	s.lastRaw = raw
	return s.ext
}

// Close closes the socket.
func (s *RTPStreamer) Close() error {
	if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// EncodeSC16 packs per-channel interleaved sc16 samples into the payload
// layout RTPStreamer decodes.
func EncodeSC16(samples [][]int16) []byte {
	if len(samples) == 0 {
		return nil
	}
	n := len(samples[0]) / 2
	frame := sc16Bytes * len(samples)
	out := make([]byte, n*frame)
	for k := range n {
		for ch := range samples {
			off := k*frame + ch*sc16Bytes
			binary.BigEndian.PutUint16(out[off:], uint16(samples[ch][2*k]))
			binary.BigEndian.PutUint16(out[off+2:], uint16(samples[ch][2*k+1]))
		}
	}
	return out
}
