package logger

import "log/slog"

// Standard field keys for structured logging. Use these consistently so
// connection, session, and link activity can be correlated in aggregated
// logs.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Connection
	// ========================================================================
	KeyContainerID = "container_id" // AMQP container id of this endpoint
	KeyRemoteAddr  = "remote_addr"  // Peer network address
	KeyFrameType   = "frame_type"   // Performative name: begin, flow, transfer, ...
	KeyFrameSize   = "frame_size"   // Frame size in bytes

	// ========================================================================
	// Session
	// ========================================================================
	KeyChannel       = "channel"        // Local channel number
	KeyRemoteChannel = "remote_channel" // Peer-assigned channel number
	KeySessionState  = "session_state"  // Lifecycle state name

	// ========================================================================
	// Link
	// ========================================================================
	KeyLink         = "link"          // Link name
	KeyHandle       = "handle"        // Local link handle
	KeyRemoteHandle = "remote_handle" // Peer-assigned link handle
	KeyRole         = "role"          // sender or receiver
	KeyAddress      = "address"       // Source/target node address

	// ========================================================================
	// Deliveries & Flow Control
	// ========================================================================
	KeyDeliveryID      = "delivery_id"     // Transfer sequence number
	KeyFirst           = "first"           // Disposition range start
	KeyLast            = "last"            // Disposition range end
	KeySettled         = "settled"         // Settlement flag
	KeyState           = "state"           // Delivery state name
	KeyIncomingWindow  = "incoming_window" // Local receive window
	KeyOutgoingWindow  = "outgoing_window" // Local send window
	KeyRemoteInWindow  = "remote_incoming" // Peer receive window, our view
	KeyRemoteOutWindow = "remote_outgoing" // Peer send window, our view
	KeyLinkCredit      = "link_credit"     // Link-level credit

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyCondition  = "condition"   // AMQP error condition symbol
)

// ============================================================================
// Field constructors for type safety
// ============================================================================

// Channel returns a slog.Attr for the local channel number.
func Channel(ch uint16) slog.Attr {
	return slog.Any(KeyChannel, ch)
}

// RemoteChannel returns a slog.Attr for the peer-assigned channel number.
func RemoteChannel(ch uint16) slog.Attr {
	return slog.Any(KeyRemoteChannel, ch)
}

// SessionState returns a slog.Attr for the session lifecycle state.
func SessionState(state string) slog.Attr {
	return slog.String(KeySessionState, state)
}

// Link returns a slog.Attr for the link name.
func Link(name string) slog.Attr {
	return slog.String(KeyLink, name)
}

// Handle returns a slog.Attr for a local link handle.
func Handle(h uint32) slog.Attr {
	return slog.Any(KeyHandle, h)
}

// RemoteHandle returns a slog.Attr for a peer-assigned link handle.
func RemoteHandle(h uint32) slog.Attr {
	return slog.Any(KeyRemoteHandle, h)
}

// Role returns a slog.Attr for the link role.
func Role(role string) slog.Attr {
	return slog.String(KeyRole, role)
}

// DeliveryID returns a slog.Attr for a transfer sequence number.
func DeliveryID(id uint32) slog.Attr {
	return slog.Any(KeyDeliveryID, id)
}

// FrameType returns a slog.Attr for a performative name.
func FrameType(name string) slog.Attr {
	return slog.String(KeyFrameType, name)
}

// RemoteAddr returns a slog.Attr for the peer network address.
func RemoteAddr(addr string) slog.Attr {
	return slog.String(KeyRemoteAddr, addr)
}

// DurationMs returns a slog.Attr for duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
