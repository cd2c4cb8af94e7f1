package secure

import (
	"crypto/x509"
	"errors"
)

// Engine is a TLS or DTLS endpoint that never blocks its caller.
//
// Ciphertext from the socket is handed in with Feed. Handshake advances the
// handshake by one step and returns ErrWantRead while the engine waits for
// more peer data. Ciphertext produced by the engine is written to the socket
// by the engine itself, through the sink it was created with.
//
// Engines may make progress after a call returns (timers, async state
// machines). The function set with SetWakeup is called whenever that happens
// so the owner can drive the engine again.
type Engine interface {
	// Handshake performs one non-blocking handshake step. It returns nil once
	// the handshake has completed.
	Handshake() error

	// Feed queues ciphertext received from the peer.
	Feed(ciphertext []byte) error

	// Read returns decrypted application data, ErrWantRead when none is
	// available, or ErrPeerClosed after the peer's close_notify.
	Read(p []byte) (int, error)

	// Write encrypts p and sends it to the peer.
	Write(p []byte) (int, error)

	// Reset discards handshake state so the handshake can start over.
	Reset() error

	// PeerCertificates returns the peer's certificate chain, leaf first.
	PeerCertificates() []*x509.Certificate

	// SetWakeup registers the asynchronous progress callback.
	SetWakeup(fn func())

	// Close sends close_notify (or an alert during the handshake) on a best
	// effort basis and releases the engine.
	Close() error
}

// Step results and engine errors.
var (
	// ErrWantRead means the engine needs more ciphertext from the peer.
	ErrWantRead = errors.New("secure: want read")

	// ErrWantWrite means the engine could not flush its output yet.
	ErrWantWrite = errors.New("secure: want write")

	// ErrHelloVerifyRequired is a DTLS server's cookie exchange request.
	// The handshake must be reset and stepped again.
	ErrHelloVerifyRequired = errors.New("secure: hello verify required")

	// ErrClosedBeforeStart means the transport closed before any handshake
	// data arrived.
	ErrClosedBeforeStart = errors.New("secure: closed before handshake start")

	// ErrPeerClosed is a graceful close by the peer.
	ErrPeerClosed = errors.New("secure: peer closed")

	// ErrEngineClosed is returned by every method after Close.
	ErrEngineClosed = errors.New("secure: engine closed")
)

// IsPending reports whether err is an expected, non-fatal handshake step
// result that leaves the handshake state unchanged.
func IsPending(err error) bool {
	return errors.Is(err, ErrWantRead) ||
		errors.Is(err, ErrWantWrite) ||
		errors.Is(err, ErrClosedBeforeStart)
}
