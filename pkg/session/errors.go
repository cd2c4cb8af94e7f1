package session

import "errors"

// Session package errors.
var (
	// ErrDuplicateIdentity is returned when inserting a session whose
	// endpoint matches one already in the table.
	ErrDuplicateIdentity = errors.New("session: duplicate identity")

	// ErrTableFull is returned when the table holds its maximum peer count.
	ErrTableFull = errors.New("session: table full")

	// ErrQueueFull is returned when a bounded pending queue is at capacity.
	ErrQueueFull = errors.New("session: pending queue full")

	// ErrHandshakeFailed wraps a fatal engine error. The session has been
	// removed from the table.
	ErrHandshakeFailed = errors.New("session: handshake failed")

	// ErrFlushFailed is returned when writing the pending queue after the
	// handshake failed. The writes not yet sent were discarded.
	ErrFlushFailed = errors.New("session: pending flush failed")

	// ErrNoEngine is returned when stepping a plaintext session.
	ErrNoEngine = errors.New("session: no secure engine")

	// ErrClosed is returned for a session already removed from its table.
	ErrClosed = errors.New("session: closed")
)
