// Package engine implements the AMQP 1.0 protocol engine: connections,
// sessions, and links. The session is the center of gravity: it owns the
// lifecycle state machine, credit-window accounting, handle allocation,
// link indexing, and the dispatch of inbound frames.
package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/mcastelli/amqp10/internal/frames"
	"github.com/mcastelli/amqp10/internal/logger"
)

// DefaultHandleMax bounds link handle allocation when neither side
// negotiates a limit.
const DefaultHandleMax uint32 = 255

// Connection is what a Session consumes from the transport layer:
// channel reservation and raw frame output. Implemented by *Conn; tests
// substitute a recorder.
type Connection interface {
	// AssociateSession reserves a local channel for the session and
	// registers it for inbound routing.
	AssociateSession(s *Session) (uint16, error)

	// DissociateSession releases a channel reserved by
	// AssociateSession.
	DissociateSession(channel uint16)

	// SendFrame transmits a frame whose channel field is already set.
	SendFrame(fr frames.Frame) error
}

// SessionOptions is the policy for Begin. The three window fields are
// required; Begin fails when any is nil.
type SessionOptions struct {
	// NextOutgoingID is the delivery id the first transfer will carry.
	NextOutgoingID *uint32

	// IncomingWindow is the number of transfers we are prepared to
	// receive.
	IncomingWindow *uint32

	// OutgoingWindow is the number of transfers we intend to send
	// before awaiting peer flow.
	OutgoingWindow *uint32

	// HandleMax caps link handle allocation; zero selects
	// DefaultHandleMax.
	HandleMax uint32

	// FlowControl, when true, rejects sends that would overrun the
	// peer's incoming window instead of clamping and proceeding.
	FlowControl bool
}

// SendOptions qualifies one Send call.
type SendOptions struct {
	// Settled marks the transfer pre-settled, so no disposition is
	// expected for it.
	Settled bool

	// Tag overrides the delivery tag; defaults to the big-endian
	// delivery id.
	Tag []byte
}

// FlowOptions qualifies one AddWindow call.
type FlowOptions struct {
	// Echo asks the peer to respond with its own flow state.
	Echo bool
}

// Session multiplexes links over one channel of a connection and
// enforces AMQP session flow control.
//
// All mutable state is guarded by mu. Frame dispatch is driven by the
// connection's single read loop, so inbound processing is serialized in
// delivery order; public operations from other goroutines interleave at
// frame granularity. Notification callbacks run after mu is released.
type Session struct {
	conn Connection
	log  *slog.Logger

	mu sync.Mutex

	state State

	localChannel  uint16
	localSet      bool
	remoteChannel uint16
	remoteSet     bool

	// Ids are 32-bit sequence numbers; windows are signed so that peer
	// violations produce observable negatives. Wire values clamp to
	// uint32 at encode time.
	nextOutgoingID       uint32
	nextIncomingID       uint32
	initialOutgoingID    uint32
	incomingWindow       int64
	outgoingWindow       int64
	remoteIncomingWindow int64
	remoteOutgoingWindow int64

	handleMax   uint32
	flowControl bool

	handles             map[uint32]*Link
	linksByName         map[string]*Link
	linksByRemoteHandle map[uint32]*Link
	senderLinks         []*Link

	inFlight inFlightTable

	handlers SessionHandlers
}

// NewSession creates an inert session bound to conn. Call Begin to map
// it onto a channel.
func NewSession(conn Connection) *Session {
	return &Session{
		conn:  conn,
		log:   logger.With(),
		state: StateUnmapped,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Windows returns the session's four window counters in order: incoming,
// outgoing, remote incoming, remote outgoing. Negative values indicate a
// tolerated peer violation.
func (s *Session) Windows() (incoming, outgoing, remoteIncoming, remoteOutgoing int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.incomingWindow, s.outgoingWindow, s.remoteIncomingWindow, s.remoteOutgoingWindow
}

// InFlight returns the number of unsettled outbound transfers.
func (s *Session) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight.len()
}

// ============================================================================
// Public operations
// ============================================================================

// Begin reserves a channel from the connection and sends our Begin
// performative. Valid only from UNMAPPED; the session is mapped once the
// peer's Begin arrives.
func (s *Session) Begin(opts SessionOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUnmapped {
		return fmt.Errorf("%w: begin in %s", ErrIllegalState, s.state)
	}
	if opts.NextOutgoingID == nil {
		return fmt.Errorf("%w: NextOutgoingID", ErrMissingOption)
	}
	if opts.IncomingWindow == nil {
		return fmt.Errorf("%w: IncomingWindow", ErrMissingOption)
	}
	if opts.OutgoingWindow == nil {
		return fmt.Errorf("%w: OutgoingWindow", ErrMissingOption)
	}

	channel, err := s.conn.AssociateSession(s)
	if err != nil {
		return fmt.Errorf("associate session: %w", err)
	}

	s.localChannel = channel
	s.localSet = true
	s.nextOutgoingID = *opts.NextOutgoingID
	s.initialOutgoingID = *opts.NextOutgoingID
	s.incomingWindow = int64(*opts.IncomingWindow)
	s.outgoingWindow = int64(*opts.OutgoingWindow)
	s.remoteIncomingWindow = 0
	s.remoteOutgoingWindow = 0
	s.handleMax = opts.HandleMax
	if s.handleMax == 0 {
		s.handleMax = DefaultHandleMax
	}
	s.flowControl = opts.FlowControl

	next, err := transition(s.state, eventSendBegin)
	if err != nil {
		s.releaseChannelLocked()
		return err
	}
	s.state = next

	handleMax := s.handleMax
	begin := &frames.Begin{
		NextOutgoingID: s.nextOutgoingID,
		IncomingWindow: clampU32(s.incomingWindow),
		OutgoingWindow: clampU32(s.outgoingWindow),
		HandleMax:      &handleMax,
	}
	if err := s.sendFrame(begin); err != nil {
		s.state = StateUnmapped
		s.releaseChannelLocked()
		return fmt.Errorf("send begin: %w", err)
	}

	s.log.Info("session begin sent",
		logger.Channel(s.localChannel),
		logger.SessionState(s.state.String()),
		logger.KeyOutgoingWindow, s.outgoingWindow,
		logger.KeyIncomingWindow, s.incomingWindow)
	return nil
}

// AttachLink allocates a handle, registers a new link, and starts its
// attach handshake. Fails with ErrHandleExhausted when every handle in
// [0, handleMax] is taken.
func (s *Session) AttachLink(opts LinkOptions) (*Link, error) {
	s.mu.Lock()

	if s.state != StateMapped {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: attach in %s", ErrIllegalState, s.state)
	}

	name := resolveLinkName(opts)
	if _, exists := s.linksByName[name]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrLinkNameInUse, name)
	}

	handle, ok := s.allocHandle()
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: handleMax %d", ErrHandleExhausted, s.handleMax)
	}

	l := &Link{
		session:   s,
		name:      name,
		handle:    handle,
		role:      opts.Role,
		source:    opts.Source,
		target:    opts.Target,
		credit:    opts.Credit,
		onMessage: opts.OnMessage,
	}

	s.handles[handle] = l
	s.linksByName[name] = l
	if l.role == frames.RoleSender {
		s.senderLinks = append(s.senderLinks, l)
	}

	if err := l.attach(); err != nil {
		s.dropLinkLocked(l)
		s.mu.Unlock()
		return nil, fmt.Errorf("send attach: %w", err)
	}

	s.log.Info("link attach sent",
		logger.Link(name), logger.Handle(handle), logger.Role(l.role.String()))

	cb := s.handlers.LinkAttached
	s.mu.Unlock()

	if cb != nil {
		cb(l)
	}
	return l, nil
}

// DetachLink starts the detach handshake for a link. The session's
// indexes are cleaned up when the peer's Detach arrives.
func (s *Session) DetachLink(l *Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateMapped {
		return fmt.Errorf("%w: detach in %s", ErrIllegalState, s.state)
	}
	return l.detach(true, nil)
}

// Send assigns the next delivery id, decrements the send windows,
// records the transfer in-flight, and delegates framing to the link.
// Returns the delivery id; on ErrWindowExceeded the id and window
// counters are consumed and must not be retried.
func (s *Session) Send(l *Link, msg *frames.Message, opts SendOptions) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateMapped {
		return 0, fmt.Errorf("%w: send in %s", ErrIllegalState, s.state)
	}

	id := s.nextOutgoingID
	s.nextOutgoingID++
	s.remoteIncomingWindow--
	s.outgoingWindow--

	if s.remoteIncomingWindow < 0 {
		if s.flowControl {
			return id, fmt.Errorf("%w: delivery %d", ErrWindowExceeded, id)
		}
		s.remoteIncomingWindow = 0
	}
	if !s.flowControl && s.outgoingWindow < 0 {
		s.outgoingWindow = 0
	}

	s.inFlight.add(id, msg, opts)

	if err := l.sendMessage(id, msg, opts); err != nil {
		return id, err
	}

	s.log.Debug("transfer sent",
		logger.Link(l.name), logger.DeliveryID(id),
		logger.KeyOutgoingWindow, s.outgoingWindow,
		logger.KeyRemoteInWindow, s.remoteIncomingWindow)
	return id, nil
}

// IssueCredit grants additional link credit to the peer on a receiver
// link and announces it with a link-level flow.
func (s *Session) IssueCredit(l *Link, credit uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateMapped {
		return fmt.Errorf("%w: issue-credit in %s", ErrIllegalState, s.state)
	}
	if l.role != frames.RoleReceiver {
		return fmt.Errorf("%w: issue-credit on sender link %q", ErrIllegalState, l.name)
	}

	l.linkCredit += int64(credit)
	if err := s.sendLinkFlow(l, false, false); err != nil {
		return fmt.Errorf("send flow: %w", err)
	}

	s.log.Debug("link credit issued",
		logger.Link(l.name), "link_credit", l.linkCredit)
	return nil
}

// AddWindow grows the incoming window by size and announces the new
// session flow state to the peer. Link-level flow fields are null on the
// produced frame.
func (s *Session) AddWindow(size uint32, opts FlowOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateMapped {
		return fmt.Errorf("%w: add-window in %s", ErrIllegalState, s.state)
	}

	s.incomingWindow += int64(size)

	nextIncoming := s.nextIncomingID
	flow := &frames.Flow{
		NextIncomingID: &nextIncoming,
		IncomingWindow: clampU32(s.incomingWindow),
		NextOutgoingID: s.nextOutgoingID,
		OutgoingWindow: clampU32(s.outgoingWindow),
		Echo:           opts.Echo,
	}
	if err := s.sendFrame(flow); err != nil {
		return fmt.Errorf("send flow: %w", err)
	}

	s.log.Debug("window advertised",
		logger.KeyIncomingWindow, s.incomingWindow,
		logger.DeliveryID(s.nextIncomingID))
	return nil
}

// End drives the send-End half of session teardown. Ending with a
// non-nil error enters DISCARDING: inbound frames are dropped until the
// peer's End arrives. Calling End on a session that was never mapped is
// tolerated with a warning and forces immediate cleanup.
func (s *Session) End(endErr *frames.Error) error {
	s.mu.Lock()

	switch s.state {
	case StateUnmapped:
		s.mu.Unlock()
		s.log.Warn("end called on unmapped session")
		return nil

	case StateEndSent, StateDiscarding:
		// Idempotent: our End is already on the wire.
		s.mu.Unlock()
		return nil

	case StateBeginSent, StateBeginRcvd:
		// Never reached a state with a known remote channel; there is
		// no protocol exchange to run, only local cleanup.
		s.log.Warn("end called before session mapped, cleaning up",
			logger.SessionState(s.state.String()))
		notify := s.unmapLocked()
		s.mu.Unlock()
		notify()
		return nil
	}

	next, err := transition(s.state, eventSendEnd)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.state = next
	if s.state == StateEndSent && endErr != nil {
		s.state = StateDiscarding
	}

	if err := s.sendFrame(&frames.End{Error: endErr}); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("send end: %w", err)
	}

	s.log.Info("session end sent",
		logger.Channel(s.localChannel),
		logger.SessionState(s.state.String()))

	notify := func() {}
	if s.state == StateUnmapped {
		// Mutual End exchange already completed (peer ended first);
		// cleanup happens synchronously in this call.
		notify = s.unmapLocked()
	}
	s.mu.Unlock()
	notify()
	return nil
}

// ============================================================================
// Internal helpers (callers hold s.mu)
// ============================================================================

// sendFrame stamps the local channel onto a performative and hands it to
// the connection.
func (s *Session) sendFrame(body frames.Body) error {
	return s.conn.SendFrame(frames.Frame{Channel: s.localChannel, Body: body})
}

// sendLinkFlow emits a link-level flow for l carrying the session's
// current window state.
func (s *Session) sendLinkFlow(l *Link, drain, echo bool) error {
	nextIncoming := s.nextIncomingID
	handle := l.handle
	deliveryCount := l.deliveryCount
	linkCredit := clampU32(l.linkCredit)

	return s.sendFrame(&frames.Flow{
		NextIncomingID: &nextIncoming,
		IncomingWindow: clampU32(s.incomingWindow),
		NextOutgoingID: s.nextOutgoingID,
		OutgoingWindow: clampU32(s.outgoingWindow),
		Handle:         &handle,
		DeliveryCount:  &deliveryCount,
		LinkCredit:     &linkCredit,
		Drain:          drain,
		Echo:           echo,
	})
}

// allocHandle finds the first unused handle in [0, handleMax]. Linear
// scan; handleMax is protocol-bounded and small in practice.
func (s *Session) allocHandle() (uint32, bool) {
	if s.handles == nil {
		s.handles = make(map[uint32]*Link)
		s.linksByName = make(map[string]*Link)
		s.linksByRemoteHandle = make(map[uint32]*Link)
	}
	for h := uint32(0); ; h++ {
		if _, used := s.handles[h]; !used {
			return h, true
		}
		if h == s.handleMax {
			return 0, false
		}
	}
}

// dropLinkLocked removes a link from every index.
func (s *Session) dropLinkLocked(l *Link) {
	delete(s.handles, l.handle)
	delete(s.linksByName, l.name)
	if l.remoteHandleSet {
		delete(s.linksByRemoteHandle, l.remoteHandle)
	}
	for i, sl := range s.senderLinks {
		if sl == l {
			s.senderLinks = append(s.senderLinks[:i], s.senderLinks[i+1:]...)
			break
		}
	}
}

// releaseChannelLocked returns the local channel to the connection.
func (s *Session) releaseChannelLocked() {
	if s.localSet {
		s.conn.DissociateSession(s.localChannel)
		s.localSet = false
	}
}

// unmapLocked performs full teardown: channel release, index and window
// reset, state to UNMAPPED. Returns the deferred Unmapped notification;
// the session may be reused for further Begin calls afterwards.
func (s *Session) unmapLocked() func() {
	s.releaseChannelLocked()
	s.remoteSet = false
	s.localChannel = 0
	s.remoteChannel = 0
	s.handles = nil
	s.linksByName = nil
	s.linksByRemoteHandle = nil
	s.senderLinks = nil
	s.inFlight.clear()
	s.incomingWindow = 0
	s.outgoingWindow = 0
	s.remoteIncomingWindow = 0
	s.remoteOutgoingWindow = 0
	s.state = StateUnmapped

	s.log.Info("session unmapped")

	cb := s.handlers.Unmapped
	if cb == nil {
		return func() {}
	}
	return cb
}

func clampU32(v int64) uint32 {
	switch {
	case v < 0:
		return 0
	case v > int64(^uint32(0)):
		return ^uint32(0)
	default:
		return uint32(v)
	}
}
