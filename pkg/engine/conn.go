package engine

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcastelli/amqp10/internal/frames"
	"github.com/mcastelli/amqp10/internal/logger"
	"github.com/mcastelli/amqp10/internal/telemetry"
	"github.com/mcastelli/amqp10/internal/wire"
	"github.com/mcastelli/amqp10/pkg/metrics"
)

// protoHeader is the AMQP 1.0 protocol header: "AMQP", protocol id 0,
// version 1.0.0.
var protoHeader = []byte{'A', 'M', 'Q', 'P', 0x00, 0x01, 0x00, 0x00}

const (
	// DefaultMaxFrameSize is advertised when the options carry none.
	DefaultMaxFrameSize uint32 = 65536

	// DefaultChannelMax bounds the session channel space.
	DefaultChannelMax uint16 = 255
)

// ConnOptions configures Dial.
type ConnOptions struct {
	// ContainerID names this endpoint to the peer; a UUID-suffixed
	// default is derived when empty.
	ContainerID string

	// Hostname is the vhost to request, sent in Open.
	Hostname string

	// MaxFrameSize caps inbound frame sizes; zero selects
	// DefaultMaxFrameSize.
	MaxFrameSize uint32

	// ChannelMax caps the channel space; zero selects DefaultChannelMax.
	ChannelMax uint16

	// IdleTimeout advertises our idle timeout to the peer; zero means
	// none.
	IdleTimeout time.Duration

	// Metrics records engine activity; nil disables recording.
	Metrics metrics.Engine

	// Logger overrides the package logger.
	Logger *slog.Logger
}

// Conn is an open AMQP 1.0 client connection. It owns the socket, the
// channel-number namespace, and a single read loop that routes inbound
// frames to sessions. Frame writes are serialized by a write mutex so
// concurrent sessions never interleave bytes on the wire.
type Conn struct {
	netConn net.Conn
	reader  *bufio.Reader
	log     *slog.Logger
	m       metrics.Engine

	maxFrameSize uint32
	channelMax   uint16

	writeMu sync.Mutex

	mu               sync.Mutex
	closed           bool
	sessionsByLocal  map[uint16]*Session
	sessionsByRemote map[uint16]*Session

	peerContainerID string
	peerIdleTimeout time.Duration

	done chan struct{}
}

// Dial connects to addr, exchanges protocol headers and Open frames, and
// starts the read loop. The returned Conn is ready for NewSession.
func Dial(ctx context.Context, addr string, opts ConnOptions) (*Conn, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanDial)
	defer span.End()
	span.SetAttributes(telemetry.PeerAddr(addr))

	log := opts.Logger
	if log == nil {
		log = logger.With()
	}
	log = log.With(logger.RemoteAddr(addr))

	containerID := opts.ContainerID
	if containerID == "" {
		containerID = "amqp10-" + uuid.NewString()
	}
	maxFrameSize := opts.MaxFrameSize
	if maxFrameSize == 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	channelMax := opts.ChannelMax
	if channelMax == 0 {
		channelMax = DefaultChannelMax
	}

	var d net.Dialer
	netConn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	c := &Conn{
		netConn:          netConn,
		reader:           bufio.NewReader(netConn),
		log:              log,
		m:                opts.Metrics,
		maxFrameSize:     maxFrameSize,
		channelMax:       channelMax,
		sessionsByLocal:  make(map[uint16]*Session),
		sessionsByRemote: make(map[uint16]*Session),
		done:             make(chan struct{}),
	}

	if err := c.handshake(ctx, containerID, opts); err != nil {
		netConn.Close()
		telemetry.RecordError(ctx, err)
		return nil, err
	}

	span.SetAttributes(telemetry.ContainerID(containerID))
	log.Info("connection open",
		logger.KeyContainerID, c.peerContainerID,
		"max_frame_size", maxFrameSize)
	if c.m != nil {
		c.m.ConnectionOpened()
	}

	go c.readLoop()
	if c.peerIdleTimeout > 0 {
		go c.keepalive(c.peerIdleTimeout / 2)
	}
	return c, nil
}

// handshake exchanges protocol headers and Open performatives. Runs
// before the read loop starts, so frame reads here are synchronous.
func (c *Conn) handshake(ctx context.Context, containerID string, opts ConnOptions) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.netConn.SetDeadline(deadline)
		defer func() { _ = c.netConn.SetDeadline(time.Time{}) }()
	}

	if _, err := c.netConn.Write(protoHeader); err != nil {
		return fmt.Errorf("write protocol header: %w", err)
	}
	peerHeader := make([]byte, len(protoHeader))
	if _, err := io.ReadFull(c.reader, peerHeader); err != nil {
		return fmt.Errorf("read protocol header: %w", err)
	}
	if !bytes.Equal(peerHeader, protoHeader) {
		return fmt.Errorf("peer is not AMQP 1.0: header % x", peerHeader)
	}

	open := &frames.Open{
		ContainerID:  containerID,
		Hostname:     opts.Hostname,
		MaxFrameSize: c.maxFrameSize,
		ChannelMax:   c.channelMax,
		IdleTimeout:  uint32(opts.IdleTimeout / time.Millisecond),
	}
	if err := c.SendFrame(frames.Frame{Channel: 0, Body: open}); err != nil {
		return fmt.Errorf("send open: %w", err)
	}

	// The peer's Open must arrive before anything else meaningful;
	// tolerate interleaved keepalives.
	for {
		fr, _, err := c.readFrame()
		if err != nil {
			return fmt.Errorf("await open: %w", err)
		}
		switch b := fr.Body.(type) {
		case nil:
			continue
		case *frames.Open:
			c.peerContainerID = b.ContainerID
			c.peerIdleTimeout = time.Duration(b.IdleTimeout) * time.Millisecond
			if b.ChannelMax != 0 && b.ChannelMax < c.channelMax {
				c.channelMax = b.ChannelMax
			}
			return nil
		case *frames.Close:
			if b.Error != nil {
				return fmt.Errorf("peer closed during handshake: %w", b.Error)
			}
			return fmt.Errorf("peer closed during handshake")
		default:
			return fmt.Errorf("expected open, got %s", fr.Body.FrameName())
		}
	}
}

// NewSession creates an inert session bound to this connection.
func (c *Conn) NewSession() *Session {
	s := NewSession(c)
	s.log = c.log
	return s
}

// Close sends the Close performative and tears the connection down.
// Safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	// Best effort: the peer may already be gone.
	if err := c.SendFrame(frames.Frame{Channel: 0, Body: &frames.Close{}}); err != nil {
		c.log.Debug("close frame not sent", logger.Err(err))
	}

	close(c.done)
	err := c.netConn.Close()
	if c.m != nil {
		c.m.ConnectionClosed()
	}
	c.log.Info("connection closed")
	return err
}

// ============================================================================
// Connection interface (consumed by Session)
// ============================================================================

// AssociateSession reserves the lowest free channel for s.
func (c *Conn) AssociateSession(s *Session) (uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, ErrConnClosed
	}
	for ch := uint16(0); ; ch++ {
		if _, used := c.sessionsByLocal[ch]; !used {
			c.sessionsByLocal[ch] = s
			if c.m != nil {
				c.m.SessionBegun()
			}
			return ch, nil
		}
		if ch == c.channelMax {
			return 0, fmt.Errorf("channel space exhausted at %d", c.channelMax)
		}
	}
}

// DissociateSession releases a channel and any inbound routing for it.
func (c *Conn) DissociateSession(channel uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessionsByLocal[channel]
	if !ok {
		return
	}
	delete(c.sessionsByLocal, channel)
	for remote, rs := range c.sessionsByRemote {
		if rs == s {
			delete(c.sessionsByRemote, remote)
		}
	}
	if c.m != nil {
		c.m.SessionEnded()
	}
}

// SendFrame marshals and writes one frame. Writes are serialized; the
// frame's channel field must already be set.
func (c *Conn) SendFrame(fr frames.Frame) error {
	raw := frames.Marshal(fr)

	c.writeMu.Lock()
	_, err := c.netConn.Write(raw)
	c.writeMu.Unlock()

	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if c.m != nil {
		c.m.FrameSent(bodyName(fr.Body), len(raw))
	}
	return nil
}

// ============================================================================
// Read path
// ============================================================================

// readFrame reads and decodes one frame from the socket.
func (c *Conn) readFrame() (frames.Frame, int, error) {
	header := make([]byte, wire.FrameHeaderSize)
	if _, err := io.ReadFull(c.reader, header); err != nil {
		return frames.Frame{}, 0, err
	}
	h, err := wire.ParseFrameHeader(header)
	if err != nil {
		return frames.Frame{}, 0, err
	}
	if h.Size > c.maxFrameSize {
		return frames.Frame{}, 0, fmt.Errorf("frame of %d bytes exceeds max frame size %d", h.Size, c.maxFrameSize)
	}

	if h.BodyOffset() > int(h.Size) {
		return frames.Frame{}, 0, fmt.Errorf("frame data offset %d beyond frame size %d", h.BodyOffset(), h.Size)
	}

	rest := make([]byte, int(h.Size)-wire.FrameHeaderSize)
	if _, err := io.ReadFull(c.reader, rest); err != nil {
		return frames.Frame{}, 0, err
	}

	// Skip any extended header.
	body := rest[h.BodyOffset()-wire.FrameHeaderSize:]
	fr, err := frames.Unmarshal(h.Channel, body)
	if err != nil {
		return frames.Frame{}, 0, err
	}
	return fr, int(h.Size), nil
}

// readLoop reads frames until the socket fails or the connection is
// closed, routing each to its session. One goroutine per connection, so
// sessions observe frames strictly in delivery order.
func (c *Conn) readLoop() {
	for {
		fr, size, err := c.readFrame()
		if err != nil {
			select {
			case <-c.done:
				return // expected: Close tore the socket down
			default:
			}
			c.log.Warn("read loop terminated", logger.Err(err))
			_ = c.Close()
			return
		}

		if c.m != nil {
			c.m.FrameReceived(bodyName(fr.Body), size)
		}
		c.route(fr)
	}
}

// route delivers one inbound frame: Begin by its remote-channel field,
// everything else by the channel it arrived on.
func (c *Conn) route(fr frames.Frame) {
	switch b := fr.Body.(type) {
	case nil:
		return // keepalive

	case *frames.Open:
		c.log.Debug("redundant open ignored")
		return

	case *frames.Close:
		if b.Error != nil {
			c.log.Warn("peer closed connection with error", logger.Err(b.Error))
		}
		_ = c.Close()
		return

	case *frames.Begin:
		if b.RemoteChannel == nil {
			c.dropFrame(fr, "begin without remote-channel")
			return
		}
		c.mu.Lock()
		s, ok := c.sessionsByLocal[*b.RemoteChannel]
		if ok {
			c.sessionsByRemote[fr.Channel] = s
		}
		c.mu.Unlock()
		if !ok {
			c.dropFrame(fr, "begin for unknown channel")
			return
		}
		s.HandleFrame(fr)

	default:
		c.mu.Lock()
		s, ok := c.sessionsByRemote[fr.Channel]
		c.mu.Unlock()
		if !ok {
			c.dropFrame(fr, "unmapped channel")
			return
		}
		s.HandleFrame(fr)
	}
}

func (c *Conn) dropFrame(fr frames.Frame, reason string) {
	c.log.Debug("frame dropped",
		logger.FrameType(bodyName(fr.Body)),
		logger.Channel(fr.Channel),
		"reason", reason)
	if c.m != nil {
		c.m.FrameDropped(reason)
	}
}

// keepalive sends empty frames so the peer's idle timer never fires.
func (c *Conn) keepalive(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-t.C:
			if err := c.SendFrame(frames.Frame{Channel: 0}); err != nil {
				return
			}
		}
	}
}

func bodyName(b frames.Body) string {
	if b == nil {
		return "empty"
	}
	return b.FrameName()
}
