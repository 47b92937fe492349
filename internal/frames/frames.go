// Package frames defines typed representations of the AMQP 1.0
// performatives the engine exchanges (part 2.7 of the specification) and
// their binary marshaling on top of internal/wire.
//
// Body is a closed sum type: every frame kind the engine can receive is a
// concrete struct implementing the sealed interface, so dispatch switches
// over frame kinds are compile-time checkable when a performative is
// added.
package frames

import "fmt"

// Performative descriptor codes (AMQP 1.0 part 2.7).
const (
	DescriptorOpen        = 0x10
	DescriptorBegin       = 0x11
	DescriptorAttach      = 0x12
	DescriptorFlow        = 0x13
	DescriptorTransfer    = 0x14
	DescriptorDisposition = 0x15
	DescriptorDetach      = 0x16
	DescriptorEnd         = 0x17
	DescriptorClose       = 0x18
	DescriptorError       = 0x1d
	DescriptorSource      = 0x28
	DescriptorTarget      = 0x29
)

// Role identifies the local endpoint of a link as sender or receiver.
// On the wire it is a boolean: false = sender, true = receiver.
type Role bool

const (
	RoleSender   Role = false
	RoleReceiver Role = true
)

func (r Role) String() string {
	if r == RoleReceiver {
		return "receiver"
	}
	return "sender"
}

// Frame is a channel-addressed performative. Body is nil for empty
// (keepalive) frames.
type Frame struct {
	Channel uint16
	Body    Body
}

// Body is the closed set of performatives. Implementations are the
// structs in this package and nothing else.
type Body interface {
	// FrameName returns the performative name for logging.
	FrameName() string

	// marshal appends the encoded performative body (and any trailing
	// payload) to b.
	marshal(b []byte) []byte

	frameBody()
}

// Open negotiates connection-level limits (part 2.7.1).
type Open struct {
	ContainerID  string
	Hostname     string
	MaxFrameSize uint32
	ChannelMax   uint16
	IdleTimeout  uint32 // milliseconds, 0 = none
}

// Begin starts a session on a channel (part 2.7.2). RemoteChannel is set
// by the peer acknowledging our Begin and carries the channel number we
// chose.
type Begin struct {
	RemoteChannel  *uint16
	NextOutgoingID uint32
	IncomingWindow uint32
	OutgoingWindow uint32
	HandleMax      *uint32
}

// Attach opens a link over a session (part 2.7.3). Only the fields the
// session layer routes on or the link handshake needs are modeled.
type Attach struct {
	Name                 string
	Handle               uint32
	Role                 Role
	Source               *Source
	Target               *Target
	InitialDeliveryCount uint32
}

// Flow carries session and link flow-control state (part 2.7.4). Handle,
// DeliveryCount, LinkCredit, and Available are null for a session-level
// flow.
type Flow struct {
	NextIncomingID *uint32
	IncomingWindow uint32
	NextOutgoingID uint32
	OutgoingWindow uint32
	Handle         *uint32
	DeliveryCount  *uint32
	LinkCredit     *uint32
	Available      *uint32
	Drain          bool
	Echo           bool
}

// Transfer carries one message unit (part 2.7.5). Payload is the encoded
// message bytes following the performative in the same frame.
type Transfer struct {
	Handle      uint32
	DeliveryID  *uint32
	DeliveryTag []byte
	Settled     bool
	More        bool
	Payload     []byte
}

// Disposition reports settlement for a range of delivery ids (part 2.7.6).
type Disposition struct {
	Role    Role
	First   uint32
	Last    *uint32
	Settled bool
	State   *DeliveryState
}

// Detach closes a link (part 2.7.7).
type Detach struct {
	Handle uint32
	Closed bool
	Error  *Error
}

// End closes a session (part 2.7.8).
type End struct {
	Error *Error
}

// Close closes a connection (part 2.7.9).
type Close struct {
	Error *Error
}

func (*Open) frameBody()        {}
func (*Begin) frameBody()       {}
func (*Attach) frameBody()      {}
func (*Flow) frameBody()        {}
func (*Transfer) frameBody()    {}
func (*Disposition) frameBody() {}
func (*Detach) frameBody()      {}
func (*End) frameBody()         {}
func (*Close) frameBody()       {}

func (*Open) FrameName() string        { return "open" }
func (*Begin) FrameName() string       { return "begin" }
func (*Attach) FrameName() string      { return "attach" }
func (*Flow) FrameName() string        { return "flow" }
func (*Transfer) FrameName() string    { return "transfer" }
func (*Disposition) FrameName() string { return "disposition" }
func (*Detach) FrameName() string      { return "detach" }
func (*End) FrameName() string         { return "end" }
func (*Close) FrameName() string       { return "close" }

// Error is the AMQP error composite (part 2.8.14) carried on Detach,
// End, and Close.
type Error struct {
	// Condition is a symbolic error condition, e.g. "amqp:internal-error".
	Condition string

	// Description is a human-readable explanation.
	Description string
}

func (e *Error) Error() string {
	if e.Description == "" {
		return e.Condition
	}
	return fmt.Sprintf("%s: %s", e.Condition, e.Description)
}

// Source names the origin node of a link (part 3.5.3). Only the address
// is modeled.
type Source struct {
	Address string
}

// Target names the destination node of a link (part 3.5.4).
type Target struct {
	Address string
}

// Delivery state descriptor codes (part 3.4).
const (
	StateReceived = 0x23
	StateAccepted = 0x24
	StateRejected = 0x25
	StateReleased = 0x26
	StateModified = 0x27
)

// DeliveryState is a delivery outcome carried on Disposition frames.
// Only Rejected carries a nested error.
type DeliveryState struct {
	Code  uint64
	Error *Error
}

func (s *DeliveryState) String() string {
	if s == nil {
		return "none"
	}
	switch s.Code {
	case StateReceived:
		return "received"
	case StateAccepted:
		return "accepted"
	case StateRejected:
		return "rejected"
	case StateReleased:
		return "released"
	case StateModified:
		return "modified"
	default:
		return fmt.Sprintf("state(0x%x)", s.Code)
	}
}

// Accepted returns the accepted outcome.
func Accepted() *DeliveryState {
	return &DeliveryState{Code: StateAccepted}
}

// Released returns the released outcome.
func Released() *DeliveryState {
	return &DeliveryState{Code: StateReleased}
}

// Rejected returns the rejected outcome carrying err (may be nil).
func Rejected(err *Error) *DeliveryState {
	return &DeliveryState{Code: StateRejected, Error: err}
}
