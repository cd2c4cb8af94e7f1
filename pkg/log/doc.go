// Package log captures protocol events of the connectivity adapter.
//
// Operational logging goes through log/slog. This package records what
// happened on the wire instead: raw frames, decoded CoAP messages, signaling,
// handshake and connection state changes, and errors, each tagged with the
// session's connection ID and peer.
//
//	// Console while developing
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// Binary capture for later analysis with ca-log
//	fl, _ := log.NewFileLogger("/var/log/ca/node.calog")
//	cfg.ProtocolLogger = log.NewMultiLogger(log.NewSlogAdapter(slog.Default()), fl)
//
// Capture files are a sequence of CBOR-encoded events with integer keys.
package log
