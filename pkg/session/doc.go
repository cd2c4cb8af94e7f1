// Package session holds per-peer connection state for the adapter.
//
// A Session binds an endpoint to its socket, its TLS/DTLS engine, the
// reassemblers for inbound bytes and the queue of writes waiting for the
// handshake. Sessions live in a Table; the Driver advances their handshakes.
//
// Locking:
//   - Table has one RWMutex guarding its structure only.
//   - Each Session has its own mutex guarding engine, socket and buffers.
//     Hold it across a whole receive or send on that session.
//   - Removal from the table marks the session closed. Code that acquires
//     a session lock must check Closed before touching the session.
//
// Lock order is session before table: a goroutine holding a session lock
// may call into the Table, never the reverse.
package session
