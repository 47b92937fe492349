// Package metrics defines the instrumentation interface for the protocol
// engine. The engine is handed an Engine implementation at construction;
// a nil Engine disables recording entirely, so the hot path pays only a
// nil check when metrics are off.
package metrics

// Engine records protocol engine activity.
//
// Implementations must be safe for concurrent use. The Prometheus
// implementation lives in the prometheus subpackage.
type Engine interface {
	// ConnectionOpened records a successful dial and open handshake.
	ConnectionOpened()

	// ConnectionClosed records a connection teardown.
	ConnectionClosed()

	// SessionBegun records a channel being associated for a session.
	SessionBegun()

	// SessionEnded records a session channel release.
	SessionEnded()

	// FrameSent records an outbound frame by performative name.
	FrameSent(performative string, bytes int)

	// FrameReceived records an inbound frame by performative name.
	FrameReceived(performative string, bytes int)

	// FrameDropped records an inbound frame discarded as a protocol
	// anomaly, labeled by reason.
	FrameDropped(reason string)
}
