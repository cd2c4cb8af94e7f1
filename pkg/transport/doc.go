// Package transport carries CoAP messages over TCP and UDP, optionally
// protected by TLS and DTLS.
//
// The Dispatcher is the core: it maps endpoints to sessions, queues
// payloads while a handshake is in progress, reassembles inbound streams
// into messages and answers CoAP-over-TCP signaling. It has no sockets of
// its own; bytes are handed in with Receive and written through each
// session's Socket.
//
// The Adapter wraps a Dispatcher with listening sockets, a single receiver
// goroutine for all inbound work and a pool of send workers. Sends to the
// same endpoint always land on the same worker.
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│     CoAP messages (opaque)     │
//	├────────────────────────────────┤
//	│ RFC 8323 framing │  datagram   │
//	├────────────────────────────────┤
//	│   TLS (optional) │ DTLS (opt.) │
//	├────────────────────────────────┤
//	│        TCP       │     UDP     │
//	└────────────────────────────────┘
//
// # Keep-Alive
//
// TCP sessions can be monitored with Ping/Pong signals:
//   - Ping interval: 30 seconds
//   - Pong timeout: 5 seconds
//   - Max missed pongs: 3
//   - Maximum detection delay: 95 seconds
package transport
