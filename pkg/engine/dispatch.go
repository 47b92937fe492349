package engine

import (
	"github.com/mcastelli/amqp10/internal/frames"
	"github.com/mcastelli/amqp10/internal/logger"
)

// HandleFrame is the inbound entry point, called by the connection read
// loop in frame delivery order. Classification and state mutation happen
// under the session lock; notification callbacks run after it is
// released. Protocol anomalies never propagate: the offending frame is
// logged and dropped.
func (s *Session) HandleFrame(fr frames.Frame) {
	s.mu.Lock()
	notes := s.dispatchLocked(fr)
	s.mu.Unlock()

	for _, note := range notes {
		note()
	}
}

// dispatchLocked classifies a frame and routes it. Returns deferred
// notifications.
func (s *Session) dispatchLocked(fr frames.Frame) []func() {
	if fr.Body == nil {
		return nil // keepalive
	}

	// A Begin answering ours is the one frame accepted before the
	// session has a remote channel.
	if begin, ok := fr.Body.(*frames.Begin); ok {
		return s.beginReceived(fr.Channel, begin)
	}

	if !s.remoteSet || fr.Channel != s.remoteChannel {
		s.log.Debug("frame dropped: channel not mapped",
			logger.FrameType(fr.Body.FrameName()), logger.Channel(fr.Channel))
		return nil
	}

	if s.state == StateDiscarding {
		if _, ok := fr.Body.(*frames.End); !ok {
			s.log.Debug("frame discarded while session ending with error",
				logger.FrameType(fr.Body.FrameName()))
			return nil
		}
	}

	switch b := fr.Body.(type) {
	case *frames.End:
		return s.endReceived(b)
	case *frames.Attach:
		return s.attachReceived(b)
	case *frames.Detach:
		return s.detachReceived(b)
	case *frames.Flow:
		return s.flowReceived(b)
	case *frames.Transfer:
		return s.transferReceived(b)
	case *frames.Disposition:
		return s.dispositionReceived(b)
	default:
		// Open and Close are connection-scoped; anything else on a
		// session channel is a peer bug.
		s.log.Warn("unexpected frame kind on session channel",
			logger.FrameType(fr.Body.FrameName()))
		return nil
	}
}

// beginReceived maps the session: captures the peer's channel and window
// baseline and completes the Begin handshake.
func (s *Session) beginReceived(channel uint16, fr *frames.Begin) []func() {
	if s.state != StateBeginSent {
		s.log.Debug("begin dropped: not awaiting one",
			logger.SessionState(s.state.String()), logger.Channel(channel))
		return nil
	}
	if fr.RemoteChannel == nil || *fr.RemoteChannel != s.localChannel {
		s.log.Debug("begin dropped: remote-channel mismatch",
			logger.Channel(s.localChannel))
		return nil
	}

	next, err := transition(s.state, eventRecvBegin)
	if err != nil {
		s.log.Warn("begin rejected by state machine", logger.Err(err))
		return nil
	}
	s.state = next

	s.remoteChannel = channel
	s.remoteSet = true
	s.nextIncomingID = fr.NextOutgoingID
	s.remoteIncomingWindow = int64(fr.IncomingWindow)
	s.remoteOutgoingWindow = int64(fr.OutgoingWindow)
	if fr.HandleMax != nil && *fr.HandleMax < s.handleMax {
		s.handleMax = *fr.HandleMax
	}

	s.log.Info("session mapped",
		logger.Channel(s.localChannel),
		logger.RemoteChannel(s.remoteChannel),
		logger.KeyRemoteInWindow, s.remoteIncomingWindow,
		logger.KeyRemoteOutWindow, s.remoteOutgoingWindow)

	if cb := s.handlers.Mapped; cb != nil {
		return []func(){func() { cb(s) }}
	}
	return nil
}

// endReceived drives the receive-End transition, answers with our End if
// one is still owed, and unmaps.
func (s *Session) endReceived(fr *frames.End) []func() {
	var notes []func()

	if fr.Error != nil {
		s.log.Warn("peer ended session with error",
			logger.KeyCondition, fr.Error.Condition, logger.Err(fr.Error))
		if cb := s.handlers.ErrorReceived; cb != nil {
			peerErr := fr.Error
			notes = append(notes, func() { cb(peerErr) })
		}
	}

	next, err := transition(s.state, eventRecvEnd)
	if err != nil {
		s.log.Warn("end rejected by state machine", logger.Err(err))
		return notes
	}
	s.state = next

	if s.state != StateUnmapped {
		// Peer ended first; we owe an End before unmapping.
		if next, err := transition(s.state, eventSendEnd); err == nil {
			s.state = next
		}
		if err := s.sendFrame(&frames.End{}); err != nil {
			s.log.Warn("end response failed", logger.Err(err))
		}
	}

	notes = append(notes, s.unmapLocked())
	return notes
}

// attachReceived completes a link's attach handshake, routed by name.
func (s *Session) attachReceived(fr *frames.Attach) []func() {
	l, ok := s.linksByName[fr.Name]
	if !ok {
		s.log.Warn("attach for unknown link ignored", logger.Link(fr.Name))
		return nil
	}

	l.remoteHandle = fr.Handle
	l.remoteHandleSet = true
	s.linksByRemoteHandle[fr.Handle] = l

	s.log.Info("link attached",
		logger.Link(l.name), logger.Handle(l.handle),
		logger.RemoteHandle(fr.Handle), logger.Role(l.role.String()))

	return l.attachReceived(fr)
}

// detachReceived completes a link's detach handshake, routed by remote
// handle, then drops the link from the session's indexes.
func (s *Session) detachReceived(fr *frames.Detach) []func() {
	l, ok := s.linksByRemoteHandle[fr.Handle]
	if !ok {
		s.log.Warn("detach for unknown handle ignored", logger.RemoteHandle(fr.Handle))
		return nil
	}

	l.detachReceived(fr)
	return s.linkDetached(l)
}

// linkDetached is the link-to-session mutation request: remove the link
// from every index and notify.
func (s *Session) linkDetached(l *Link) []func() {
	s.dropLinkLocked(l)
	s.log.Info("link detached", logger.Link(l.name), logger.Handle(l.handle))

	if cb := s.handlers.LinkDetached; cb != nil {
		return []func(){func() { cb(l) }}
	}
	return nil
}

// flowReceived reconciles session windows with the peer's flow state,
// then routes any link-level portion.
//
// The remote incoming window recompute has two branches and both matter:
// when the peer reports its next-incoming-id we rebase on that, and when
// it does not (it has seen none of our transfers yet) we rebase on our
// own id at begin time.
func (s *Session) flowReceived(fr *frames.Flow) []func() {
	s.nextIncomingID = fr.NextOutgoingID
	s.remoteOutgoingWindow = int64(fr.OutgoingWindow)

	if fr.NextIncomingID != nil {
		s.remoteIncomingWindow = int64(*fr.NextIncomingID) + int64(fr.IncomingWindow) - int64(s.nextOutgoingID)
	} else {
		s.remoteIncomingWindow = int64(s.initialOutgoingID) + int64(fr.IncomingWindow) - int64(s.nextOutgoingID)
	}

	s.log.Debug("flow received",
		logger.KeyRemoteInWindow, s.remoteIncomingWindow,
		logger.KeyRemoteOutWindow, s.remoteOutgoingWindow)

	if fr.Handle != nil {
		l, ok := s.linksByRemoteHandle[*fr.Handle]
		if !ok {
			s.log.Warn("flow for unknown handle ignored", logger.RemoteHandle(*fr.Handle))
			return nil
		}
		l.flowReceived(fr)
		return nil
	}

	// No handle: session-level broadcast to every sender link in attach
	// order.
	for _, l := range s.senderLinks {
		l.flowReceived(fr)
	}
	return nil
}

// transferReceived accounts the receive windows for every transfer, then
// routes to the owning link when the handle is known. The window
// decrement stands even for unroutable transfers: accounting must
// reflect everything the peer sent.
func (s *Session) transferReceived(fr *frames.Transfer) []func() {
	s.incomingWindow--
	s.remoteOutgoingWindow--
	if s.incomingWindow < 0 {
		s.log.Warn("peer violated incoming window, tolerating",
			logger.KeyIncomingWindow, s.incomingWindow)
	}
	if fr.DeliveryID != nil {
		s.nextIncomingID = *fr.DeliveryID + 1
	}

	l, ok := s.linksByRemoteHandle[fr.Handle]
	if !ok {
		s.log.Warn("transfer for unknown handle dropped", logger.RemoteHandle(fr.Handle))
		return nil
	}

	note, err := l.messageReceived(fr)
	if err != nil {
		s.log.Warn("transfer dropped", logger.Link(l.name), logger.Err(err))
		return nil
	}
	if note != nil {
		return []func(){note}
	}
	return nil
}

// dispositionReceived settles in-flight deliveries for receiver-role
// dispositions and always emits the notification. Sender-role
// dispositions are accepted but not acted upon.
func (s *Session) dispositionReceived(fr *frames.Disposition) []func() {
	if fr.Role != frames.RoleReceiver {
		s.log.Warn("sender-role disposition not handled",
			logger.KeyFirst, fr.First)
		return nil
	}

	last := fr.First
	if fr.Last != nil {
		last = *fr.Last
	}
	if last < fr.First {
		s.log.Warn("disposition with inverted range, treating as single",
			logger.KeyFirst, fr.First, logger.KeyLast, last)
		last = fr.First
	}

	if fr.Settled {
		for _, d := range s.inFlight.settle(fr.First, last) {
			s.log.Debug("delivery settled",
				logger.DeliveryID(d.id),
				logger.DurationMs(float64(d.latency.Microseconds())/1000.0),
				logger.KeyState, fr.State.String())
		}
	}

	if cb := s.handlers.DispositionReceived; cb != nil {
		ev := DispositionEvent{
			First:   fr.First,
			Last:    last,
			Settled: fr.Settled,
			State:   fr.State,
		}
		return []func(){func() { cb(ev) }}
	}
	return nil
}
