// Package endpoint defines the identity of a remote peer: the transport
// adapter, the address family and security flags, the address and the port.
//
// An Endpoint is a plain value. Two lookup relations are provided:
//   - Equal: strict comparison of every field
//   - Matches: same adapter, address and port with intersecting flags
//
// Matches is what the session table uses. A peer reached over IPv4 with the
// secure flag set matches a lookup for the same address and port that only
// names FlagSecure.
package endpoint

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Default CoAP ports.
const (
	DefaultPort       = 5683
	DefaultSecurePort = 5684
)

// URI schemes.
const (
	SchemeUDP       = "coap"
	SchemeUDPSecure = "coaps"
	SchemeTCP       = "coap+tcp"
	SchemeTCPSecure = "coaps+tcp"
)

// Endpoint errors.
var (
	ErrInvalidScheme  = errors.New("endpoint: unsupported scheme")
	ErrInvalidAddress = errors.New("endpoint: invalid address")
	ErrInvalidPort    = errors.New("endpoint: invalid port")
)

// Adapter identifies the transport carrying an endpoint's traffic.
type Adapter uint8

const (
	// AdapterUnknown is the zero value.
	AdapterUnknown Adapter = iota
	// AdapterUDP carries CoAP datagrams, DTLS when secure.
	AdapterUDP
	// AdapterTCP carries length-prefixed CoAP, TLS when secure.
	AdapterTCP
)

// String returns the adapter name.
func (a Adapter) String() string {
	switch a {
	case AdapterUDP:
		return "UDP"
	case AdapterTCP:
		return "TCP"
	default:
		return "UNKNOWN"
	}
}

// Network returns the net package network name for the adapter.
func (a Adapter) Network() string {
	switch a {
	case AdapterUDP:
		return "udp"
	case AdapterTCP:
		return "tcp"
	default:
		return ""
	}
}

// ParseAdapter resolves an adapter name ("tcp" or "udp", any case).
func ParseAdapter(name string) (Adapter, error) {
	switch strings.ToLower(name) {
	case "tcp":
		return AdapterTCP, nil
	case "udp":
		return AdapterUDP, nil
	default:
		return AdapterUnknown, fmt.Errorf("endpoint: unknown adapter %q", name)
	}
}

// IsValid reports whether the adapter is a known transport.
func (a Adapter) IsValid() bool {
	return a == AdapterUDP || a == AdapterTCP
}

// Flags is the transport flag bitset of an endpoint.
type Flags uint16

const (
	// FlagIPv4 marks an IPv4 peer.
	FlagIPv4 Flags = 1 << iota
	// FlagIPv6 marks an IPv6 peer.
	FlagIPv6
	// FlagSecure marks a TLS/DTLS protected peer.
	FlagSecure
	// FlagMulticast marks a multicast destination.
	FlagMulticast
)

// FamilyMask selects the address family bits.
const FamilyMask = FlagIPv4 | FlagIPv6

// Has reports whether all bits of f2 are set.
func (f Flags) Has(f2 Flags) bool {
	return f&f2 == f2
}

// String renders the set flags separated by '|'.
func (f Flags) String() string {
	if f == 0 {
		return "NONE"
	}
	var parts []string
	if f.Has(FlagIPv4) {
		parts = append(parts, "IPV4")
	}
	if f.Has(FlagIPv6) {
		parts = append(parts, "IPV6")
	}
	if f.Has(FlagSecure) {
		parts = append(parts, "SECURE")
	}
	if f.Has(FlagMulticast) {
		parts = append(parts, "MULTICAST")
	}
	return strings.Join(parts, "|")
}

// Endpoint identifies a remote peer.
type Endpoint struct {
	Adapter Adapter
	Flags   Flags
	Address string
	Port    uint16
}

// New creates an endpoint. The address is normalised when it parses as an IP.
func New(adapter Adapter, flags Flags, address string, port uint16) Endpoint {
	return Endpoint{
		Adapter: adapter,
		Flags:   flags,
		Address: normaliseAddress(address),
		Port:    port,
	}
}

// FromAddr builds an endpoint for a socket address. The IP family flag is
// derived from the address; secure adds FlagSecure.
func FromAddr(adapter Adapter, addr net.Addr, secure bool) (Endpoint, error) {
	var ip net.IP
	var port int
	switch a := addr.(type) {
	case *net.TCPAddr:
		ip, port = a.IP, a.Port
	case *net.UDPAddr:
		ip, port = a.IP, a.Port
	case nil:
		return Endpoint{}, ErrInvalidAddress
	default:
		host, p, err := net.SplitHostPort(addr.String())
		if err != nil {
			return Endpoint{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
		}
		ip = net.ParseIP(host)
		port, err = strconv.Atoi(p)
		if err != nil {
			return Endpoint{}, fmt.Errorf("%w: %v", ErrInvalidPort, err)
		}
	}
	if ip == nil {
		return Endpoint{}, ErrInvalidAddress
	}
	if port < 0 || port > 0xFFFF {
		return Endpoint{}, ErrInvalidPort
	}

	flags := familyOf(ip)
	if secure {
		flags |= FlagSecure
	}
	if ip.IsMulticast() {
		flags |= FlagMulticast
	}
	return Endpoint{
		Adapter: adapter,
		Flags:   flags,
		Address: ip.String(),
		Port:    uint16(port),
	}, nil
}

// Parse parses a CoAP URI such as "coaps+tcp://[fe80::1]:5684".
// A missing port defaults to 5683, or 5684 for secure schemes.
func Parse(uri string) (Endpoint, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}

	var adapter Adapter
	var flags Flags
	switch strings.ToLower(u.Scheme) {
	case SchemeUDP:
		adapter = AdapterUDP
	case SchemeUDPSecure:
		adapter, flags = AdapterUDP, FlagSecure
	case SchemeTCP:
		adapter = AdapterTCP
	case SchemeTCPSecure:
		adapter, flags = AdapterTCP, FlagSecure
	default:
		return Endpoint{}, fmt.Errorf("%w: %q", ErrInvalidScheme, u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return Endpoint{}, ErrInvalidAddress
	}

	port := DefaultPort
	if flags.Has(FlagSecure) {
		port = DefaultSecurePort
	}
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port <= 0 || port > 0xFFFF {
			return Endpoint{}, fmt.Errorf("%w: %q", ErrInvalidPort, p)
		}
	}

	if ip := net.ParseIP(host); ip != nil {
		flags |= familyOf(ip)
		if ip.IsMulticast() {
			flags |= FlagMulticast
		}
	}

	return New(adapter, flags, host, uint16(port)), nil
}

// IsValid reports whether the endpoint names a usable peer.
func (e Endpoint) IsValid() bool {
	return e.Adapter.IsValid() && e.Address != "" && e.Port != 0
}

// IsSecure reports whether traffic is TLS/DTLS protected.
func (e Endpoint) IsSecure() bool {
	return e.Flags.Has(FlagSecure)
}

// HostPort returns the address in host:port form.
func (e Endpoint) HostPort() string {
	return net.JoinHostPort(e.Address, strconv.Itoa(int(e.Port)))
}

// Scheme returns the URI scheme for the endpoint.
func (e Endpoint) Scheme() string {
	switch {
	case e.Adapter == AdapterTCP && e.IsSecure():
		return SchemeTCPSecure
	case e.Adapter == AdapterTCP:
		return SchemeTCP
	case e.IsSecure():
		return SchemeUDPSecure
	default:
		return SchemeUDP
	}
}

// String renders the endpoint as a URI.
func (e Endpoint) String() string {
	return e.Scheme() + "://" + e.HostPort()
}

// Equal reports strict equality of every field.
func (e Endpoint) Equal(o Endpoint) bool {
	return e == o
}

// Matches reports whether o identifies the same peer for lookup purposes:
// adapter, address and port are equal and the flag sets intersect. An empty
// flag set on either side matches any flags.
func (e Endpoint) Matches(o Endpoint) bool {
	if e.Adapter != o.Adapter || e.Port != o.Port || e.Address != o.Address {
		return false
	}
	if e.Flags == 0 || o.Flags == 0 {
		return true
	}
	return e.Flags&o.Flags != 0
}

// WithFlags returns a copy with the given flags.
func (e Endpoint) WithFlags(flags Flags) Endpoint {
	e.Flags = flags
	return e
}

func familyOf(ip net.IP) Flags {
	if ip.To4() != nil {
		return FlagIPv4
	}
	return FlagIPv6
}

func normaliseAddress(address string) string {
	if ip := net.ParseIP(strings.Trim(address, "[]")); ip != nil {
		return ip.String()
	}
	return address
}
