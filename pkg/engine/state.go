package engine

import "fmt"

// State is a session lifecycle state (AMQP 1.0 part 2.5.5).
type State int

const (
	// StateUnmapped is the initial and terminal state: no channel is
	// associated.
	StateUnmapped State = iota

	// StateBeginSent means our Begin is on the wire, awaiting the peer's.
	StateBeginSent

	// StateBeginRcvd means the peer began first. This engine always
	// initiates, so the state is defined for completeness of the
	// transition table but is never entered through the public API.
	StateBeginRcvd

	// StateMapped is the operational state: both Begins exchanged.
	StateMapped

	// StateEndSent means our End is on the wire, awaiting the peer's.
	StateEndSent

	// StateEndRcvd means the peer ended first; we still owe an End.
	StateEndRcvd

	// StateDiscarding is EndSent entered through a local error end:
	// inbound frames are discarded until the peer's End arrives.
	StateDiscarding
)

func (s State) String() string {
	switch s {
	case StateUnmapped:
		return "UNMAPPED"
	case StateBeginSent:
		return "BEGIN_SENT"
	case StateBeginRcvd:
		return "BEGIN_RCVD"
	case StateMapped:
		return "MAPPED"
	case StateEndSent:
		return "END_SENT"
	case StateEndRcvd:
		return "END_RCVD"
	case StateDiscarding:
		return "DISCARDING"
	default:
		return fmt.Sprintf("STATE(%d)", int(s))
	}
}

// event is a state machine input: sending or receiving a Begin or End.
type event int

const (
	eventSendBegin event = iota
	eventRecvBegin
	eventSendEnd
	eventRecvEnd
)

func (e event) String() string {
	switch e {
	case eventSendBegin:
		return "send-begin"
	case eventRecvBegin:
		return "recv-begin"
	case eventSendEnd:
		return "send-end"
	case eventRecvEnd:
		return "recv-end"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// transition applies an event to a state and returns the next state.
// Combinations outside the protocol's transition table are rejected with
// ErrInvalidTransition; no partial mutation can occur since the function
// is pure.
func transition(s State, e event) (State, error) {
	switch s {
	case StateUnmapped:
		switch e {
		case eventSendBegin:
			return StateBeginSent, nil
		case eventRecvBegin:
			return StateBeginRcvd, nil
		}
	case StateBeginSent:
		if e == eventRecvBegin {
			return StateMapped, nil
		}
	case StateBeginRcvd:
		if e == eventSendBegin {
			return StateMapped, nil
		}
	case StateMapped:
		switch e {
		case eventSendEnd:
			return StateEndSent, nil
		case eventRecvEnd:
			return StateEndRcvd, nil
		}
	case StateEndSent, StateDiscarding:
		if e == eventRecvEnd {
			return StateUnmapped, nil
		}
	case StateEndRcvd:
		if e == eventSendEnd {
			return StateUnmapped, nil
		}
	}
	return s, fmt.Errorf("%w: %s in %s", ErrInvalidTransition, e, s)
}
