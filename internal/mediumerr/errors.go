// Package mediumerr holds the sentinel error values surfaced by the medium
// core. Callers use errors.Is against these to branch on failure class;
// call sites wrap them with fmt.Errorf("...: %w", ...) for context.
package mediumerr

import "errors"

var (
	// ErrConnectionFailed signals a transport connect/TLS precondition failure. Recoverable.
	ErrConnectionFailed = errors.New("medium: connection failed")

	// ErrTransmissionFailed signals a transport publish or serialization failure. Recoverable.
	ErrTransmissionFailed = errors.New("medium: transmission failed")

	// ErrChannelNotFound signals RemoveChannel on an unknown channel name. Not recoverable.
	ErrChannelNotFound = errors.New("medium: channel not found")

	// ErrInvalidVibrator signals a malformed subscriber configuration. Not recoverable.
	ErrInvalidVibrator = errors.New("medium: invalid vibrator")

	// ErrPhysics signals a physicsLite diagnostic failure. Not recoverable.
	ErrPhysics = errors.New("medium: physics error")

	// ErrPersistence signals a durable-log read/write failure, surfaced only from Recover. Not recoverable.
	ErrPersistence = errors.New("medium: persistence error")

	// ErrAuthorization signals a missing/mismatched token or disallowed source. Not recoverable.
	ErrAuthorization = errors.New("medium: authorization failed")

	// ErrValidation signals a malformed channel name or oversize payload. Not recoverable.
	ErrValidation = errors.New("medium: validation failed")

	// ErrCircuitOpen signals the breaker denied the call. Recoverable (transient).
	ErrCircuitOpen = errors.New("medium: circuit open")
)
