// Package wire defines the byte formats the adapter reads and writes.
//
// # CoAP over TCP
//
// Messages on stream transports carry the RFC 8323 header:
//
//	0   1   2   3   4   5   6   7
//	+---------------+---------------+
//	|      Len      |      TKL      |
//	+---------------+---------------+
//	|  Extended Length (0/1/2/4)    |
//	+-------------------------------+
//	|             Code              |
//	+-------------------------------+
//	|     Token (TKL bytes)         |
//	+-------------------------------+
//	|   Options and payload (Len)   |
//	+-------------------------------+
//
// Len values 13, 14 and 15 announce 1, 2 and 4 extended length bytes holding
// the length minus 13, 269 and 65805. The full message length is known once
// the header up to the end of the token has arrived.
//
// Message encoding and decoding, for both RFC 8323 and RFC 7252 datagrams,
// is done by the go-coap codecs; this package adds the header arithmetic the
// stream reassembler needs and the signaling helpers.
//
// Class 7 codes are signaling messages (CSM, Ping, Pong, Release, Abort).
// They are handled by the connection layer.
//
// # TLS records
//
// Secure stream transports wrap the above in TLS records. Only the 5-byte
// record header is parsed here so that complete records can be handed to the
// TLS implementation in one piece.
package wire
