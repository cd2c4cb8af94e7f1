package transport

import (
	"errors"
	"fmt"

	"github.com/iotivity/ca-go/pkg/framing"
	"github.com/iotivity/ca-go/pkg/session"
)

// Errors returned by the dispatcher and adapter. Internal failures are
// translated into this set before they reach the caller; check them with
// errors.Is.
var (
	ErrNotRunning       = errors.New("transport: adapter not running")
	ErrAlreadyRunning   = errors.New("transport: adapter already running")
	ErrInvalidEndpoint  = errors.New("transport: invalid endpoint")
	ErrInvalidMessage   = errors.New("transport: payload is not a single CoAP message")
	ErrNoRoute          = errors.New("transport: no session and no dialer for endpoint")
	ErrSecureDisabled   = errors.New("transport: secure transport not configured")
	ErrConnectFailed    = errors.New("transport: connect failed")
	ErrPeerLimit        = errors.New("transport: maximum peer count reached")
	ErrPendingQueueFull = errors.New("transport: pending write queue full")
	ErrSendQueueFull    = errors.New("transport: send queue full")
	ErrHandshakeFailed  = errors.New("transport: handshake failed")

	// ErrSecurityMismatch is a secure send to a peer whose only session is
	// plaintext.
	ErrSecurityMismatch = errors.New("transport: secure send to plaintext session")

	// ErrProtocolViolation is a malformed or oversized frame. The session
	// has been torn down.
	ErrProtocolViolation = errors.New("transport: protocol violation")

	// ErrConnectionLost is an I/O failure on an established session. The
	// session has been torn down.
	ErrConnectionLost = errors.New("transport: connection lost")

	// ErrSessionClosed means the session was torn down concurrently.
	ErrSessionClosed = errors.New("transport: session closed")
)

// translate maps internal errors onto the exported set. Errors already in
// the set pass through.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var sentinel error
	switch {
	case isExported(err):
		return err
	case errors.Is(err, framing.ErrProtocolViolation):
		sentinel = ErrProtocolViolation
	case errors.Is(err, session.ErrHandshakeFailed):
		sentinel = ErrHandshakeFailed
	case errors.Is(err, session.ErrFlushFailed):
		sentinel = ErrConnectionLost
	case errors.Is(err, session.ErrTableFull):
		sentinel = ErrPeerLimit
	case errors.Is(err, session.ErrQueueFull):
		sentinel = ErrPendingQueueFull
	case errors.Is(err, session.ErrClosed):
		sentinel = ErrSessionClosed
	default:
		sentinel = ErrConnectionLost
	}
	return fmt.Errorf("%w: %v", sentinel, err)
}

func isExported(err error) bool {
	for _, e := range []error{
		ErrNotRunning, ErrAlreadyRunning, ErrInvalidEndpoint, ErrInvalidMessage,
		ErrNoRoute, ErrSecureDisabled, ErrConnectFailed, ErrPeerLimit,
		ErrPendingQueueFull, ErrSendQueueFull, ErrHandshakeFailed, ErrSecurityMismatch,
		ErrProtocolViolation, ErrConnectionLost, ErrSessionClosed,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
