package engine

import "errors"

// Capacity errors are fatal to the requested operation but not to the
// session. Usage errors indicate the caller drove the API outside its
// contract; the session state is unchanged beyond the failed call.
var (
	// ErrHandleExhausted is returned by AttachLink when every handle in
	// [0, handleMax] is in use.
	ErrHandleExhausted = errors.New("link handle space exhausted")

	// ErrWindowExceeded is returned by Send when the remote incoming
	// window is spent and flow control is enforced. The delivery id and
	// window counters are not rolled back; the caller must not retry the
	// same delivery.
	ErrWindowExceeded = errors.New("remote incoming window exceeded")

	// ErrIllegalState is returned when an operation is invoked from a
	// session state it is not defined for.
	ErrIllegalState = errors.New("operation not valid in current session state")

	// ErrInvalidTransition is returned by the state machine for an
	// event undefined in the current state.
	ErrInvalidTransition = errors.New("undefined session state transition")

	// ErrMissingOption is returned by Begin when a required session
	// option is absent.
	ErrMissingOption = errors.New("required session option missing")

	// ErrLinkNameInUse is returned by AttachLink when a link with the
	// same name is already attached to the session.
	ErrLinkNameInUse = errors.New("link name already attached")

	// ErrConnClosed is returned for operations on a closed connection.
	ErrConnClosed = errors.New("connection closed")
)
