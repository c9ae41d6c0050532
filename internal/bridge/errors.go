package bridge

import (
	"errors"
	"fmt"
)

// Errors surfaced by the connection manager. Transport failures and
// timeouts are retried by the backoff-driven reconnect loop; protocol
// errors are returned to the caller untouched.
var (
	// ErrTransport wraps low-level dial/socket failures.
	ErrTransport = errors.New("transport error")

	// ErrIdentifyTimeout means the bridge never acknowledged the
	// identify handshake; the connect attempt fails.
	ErrIdentifyTimeout = errors.New("identify timed out")

	// ErrDiscoveryIncomplete means discovery returned nothing usable.
	// Non-fatal: the connection still comes up degraded.
	ErrDiscoveryIncomplete = errors.New("discovery incomplete")

	// ErrNotConnected means a command was issued with no connection.
	ErrNotConnected = errors.New("not connected")

	// ErrNotIdentified means the transport is up but the handshake has
	// not completed, so commands cannot be correlated yet.
	ErrNotIdentified = errors.New("not identified")

	// ErrComponentNotFound means the target resolved to no discovered
	// component.
	ErrComponentNotFound = errors.New("component not found")

	// ErrCommandTimeout means no success or error event arrived for a
	// command before its deadline.
	ErrCommandTimeout = errors.New("command timed out")

	// ErrSubscribeTimeout means no correlated state arrived for a
	// subscribe request before its deadline.
	ErrSubscribeTimeout = errors.New("subscribe timed out")

	// ErrCommandRejected is matched by errors.Is against any
	// CommandRejectedError.
	ErrCommandRejected = errors.New("command rejected")
)

// CommandRejectedError carries the bridge-supplied failure message for
// a control:set the remote side refused.
type CommandRejectedError struct {
	TransactionID string
	Message       string
}

func (e *CommandRejectedError) Error() string {
	return fmt.Sprintf("command %s rejected: %s", e.TransactionID, e.Message)
}

func (e *CommandRejectedError) Is(target error) bool {
	return target == ErrCommandRejected
}
