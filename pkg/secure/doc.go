// Package secure adapts TLS (crypto/tls) and DTLS (pion/dtls) to a
// non-blocking, step-driven Engine.
//
// The adapter owns the sockets. An Engine never reads from a socket itself:
// received ciphertext is handed to Feed, and the engine writes its own
// output through a sink function supplied at construction. This lets a
// single receiver goroutine drive many handshakes without blocking on any
// one of them.
//
// # Suites
//
// TCP sessions use TLS 1.2+ with certificate-based suites. UDP sessions use
// DTLS 1.2 and additionally support pre-shared keys, e.g.
// TLS_PSK_WITH_AES_128_CCM_8. A preferred suite may be configured by name;
// FallbackSuites controls whether the defaults are offered after it.
//
// # Peer identity
//
// Certificates may carry the device UUID in the subject as "uuid:<UUID>".
// PeerID extracts it after the handshake.
package secure
