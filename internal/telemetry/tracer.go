package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for AMQP operations. Peer/network keys follow
// OpenTelemetry semantic conventions; protocol keys use an "amqp."
// prefix.
const (
	// ========================================================================
	// Connection attributes
	// ========================================================================
	AttrPeerAddr    = "amqp.peer_addr"
	AttrContainerID = "amqp.container_id"
	AttrHostname    = "amqp.hostname"

	// ========================================================================
	// Session attributes
	// ========================================================================
	AttrChannel       = "amqp.channel"
	AttrRemoteChannel = "amqp.remote_channel"
	AttrSessionState  = "amqp.session_state"

	// ========================================================================
	// Link attributes
	// ========================================================================
	AttrLinkName = "amqp.link"
	AttrHandle   = "amqp.handle"
	AttrRole     = "amqp.role"
	AttrAddress  = "amqp.address"

	// ========================================================================
	// Delivery attributes
	// ========================================================================
	AttrDeliveryID   = "amqp.delivery_id"
	AttrSettled      = "amqp.settled"
	AttrPayloadBytes = "amqp.payload_bytes"
	AttrOutcome      = "amqp.outcome"
	AttrCondition    = "amqp.condition"
)

// Span names. Format: amqp.<operation>.
const (
	SpanDial    = "amqp.dial"
	SpanOpen    = "amqp.open"
	SpanBegin   = "amqp.begin"
	SpanAttach  = "amqp.attach"
	SpanSend    = "amqp.send"
	SpanReceive = "amqp.receive"
	SpanEnd     = "amqp.end"
	SpanClose   = "amqp.close"
)

// PeerAddr returns an attribute for the broker address
func PeerAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrPeerAddr, addr)
}

// ContainerID returns an attribute for an AMQP container id
func ContainerID(id string) attribute.KeyValue {
	return attribute.String(AttrContainerID, id)
}

// Channel returns an attribute for a local channel number
func Channel(ch uint16) attribute.KeyValue {
	return attribute.Int(AttrChannel, int(ch))
}

// RemoteChannel returns an attribute for a peer channel number
func RemoteChannel(ch uint16) attribute.KeyValue {
	return attribute.Int(AttrRemoteChannel, int(ch))
}

// LinkName returns an attribute for a link name
func LinkName(name string) attribute.KeyValue {
	return attribute.String(AttrLinkName, name)
}

// Handle returns an attribute for a link handle
func Handle(h uint32) attribute.KeyValue {
	return attribute.Int64(AttrHandle, int64(h))
}

// Role returns an attribute for a link role
func Role(role string) attribute.KeyValue {
	return attribute.String(AttrRole, role)
}

// Address returns an attribute for a node address
func Address(addr string) attribute.KeyValue {
	return attribute.String(AttrAddress, addr)
}

// DeliveryID returns an attribute for a delivery id
func DeliveryID(id uint32) attribute.KeyValue {
	return attribute.Int64(AttrDeliveryID, int64(id))
}

// Settled returns an attribute for a settlement flag
func Settled(settled bool) attribute.KeyValue {
	return attribute.Bool(AttrSettled, settled)
}

// PayloadBytes returns an attribute for a message payload size
func PayloadBytes(n int) attribute.KeyValue {
	return attribute.Int(AttrPayloadBytes, n)
}

// Outcome returns an attribute for a delivery outcome name
func Outcome(outcome string) attribute.KeyValue {
	return attribute.String(AttrOutcome, outcome)
}

// Condition returns an attribute for an AMQP error condition symbol
func Condition(condition string) attribute.KeyValue {
	return attribute.String(AttrCondition, condition)
}

// StartSendSpan starts a span for sending one message on a link.
func StartSendSpan(ctx context.Context, link string, deliveryID uint32, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		LinkName(link),
		DeliveryID(deliveryID),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, SpanSend, trace.WithAttributes(allAttrs...))
}

// StartSessionSpan starts a span for a session lifecycle operation
// (begin, end) on a channel.
func StartSessionSpan(ctx context.Context, name string, channel uint16, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		Channel(channel),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, name, trace.WithAttributes(allAttrs...))
}
