package engine

import "github.com/mcastelli/amqp10/internal/frames"

// DispositionEvent is the payload of the disposition notification. It is
// emitted for every receiver-role disposition, whether or not any of the
// ids in the range were being tracked.
type DispositionEvent struct {
	// First is the first delivery id of the settled range.
	First uint32

	// Last is the last delivery id of the range, equal to First for a
	// single-delivery disposition.
	Last uint32

	// Settled reports whether the peer considers the range settled.
	Settled bool

	// State is the delivery outcome, nil if the peer sent none.
	State *frames.DeliveryState
}

// SessionHandlers is the observer callback set for session notifications.
// Any handler may be nil. Handlers run synchronously on the goroutine
// driving the session (the connection read loop for inbound events, the
// caller for outbound ones) after the session has released its lock, so
// they may call back into the session.
type SessionHandlers struct {
	// Mapped fires when the Begin exchange completes.
	Mapped func(*Session)

	// Unmapped fires exactly once per mapping when the session returns
	// to UNMAPPED and its channel has been released.
	Unmapped func()

	// ErrorReceived fires when a peer End carries an error. Cleanup
	// still proceeds; the error is informational.
	ErrorReceived func(*frames.Error)

	// LinkAttached fires when AttachLink registers a new link.
	LinkAttached func(*Link)

	// LinkDetached fires when a link's detach handshake completes and
	// the session drops it from its indexes.
	LinkDetached func(*Link)

	// DispositionReceived fires for every receiver-role disposition.
	DispositionReceived func(DispositionEvent)
}

// Observe registers the notification handlers, replacing any previous
// set. Call before Begin; replacing handlers on a live session races
// with in-flight dispatch.
func (s *Session) Observe(h SessionHandlers) {
	s.mu.Lock()
	s.handlers = h
	s.mu.Unlock()
}
