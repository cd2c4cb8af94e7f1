// Package discovery advertises and browses CoAP endpoints over mDNS/DNS-SD.
//
// Each listener of a node maps to one of four DNS-SD service types:
//
//	_coap._udp    plaintext UDP
//	_coaps._udp   DTLS
//	_coap._tcp    plaintext TCP (RFC 8323)
//	_coaps._tcp   TLS (RFC 8323)
//
// All services of a node share one instance name. The TXT record carries
// the device ID (di) so that a browser can match services of the same node
// and check the identity presented in the TLS/DTLS handshake.
package discovery
