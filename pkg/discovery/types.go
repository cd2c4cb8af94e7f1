package discovery

import (
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/iotivity/ca-go/pkg/endpoint"
)

// DNS-SD service types.
const (
	ServiceTypeUDP       = "_coap._udp"
	ServiceTypeUDPSecure = "_coaps._udp"
	ServiceTypeTCP       = "_coap._tcp"
	ServiceTypeTCPSecure = "_coaps._tcp"

	Domain = "local."
)

// TXT record keys.
const (
	TXTKeyVersion  = "txtvers"
	TXTKeyDeviceID = "di"
	TXTKeyName     = "n"
)

// TXTVersion is the TXT record layout version.
const TXTVersion = "1"

// Limits.
const (
	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63

	// MaxTXTValueLen keeps a key=value pair inside one TXT string.
	MaxTXTValueLen = 200

	DefaultTTL    = 120 * time.Second
	BrowseTimeout = 10 * time.Second
)

var (
	ErrNotFound            = errors.New("discovery: service not found")
	ErrMissingRequired     = errors.New("discovery: missing required TXT field")
	ErrInvalidTXT          = errors.New("discovery: invalid TXT record")
	ErrInstanceNameTooLong = errors.New("discovery: instance name too long")
	ErrUnknownServiceType  = errors.New("discovery: unknown service type")
	ErrNoServices          = errors.New("discovery: nothing to advertise")
)

// Service is one advertised listener.
type Service struct {
	Adapter endpoint.Adapter
	Secure  bool
	Port    uint16
}

// Type returns the DNS-SD service type.
func (s Service) Type() string {
	return ServiceType(s.Adapter, s.Secure)
}

// ServiceType maps an adapter and security mode to its DNS-SD type.
func ServiceType(adapter endpoint.Adapter, secure bool) string {
	switch {
	case adapter == endpoint.AdapterTCP && secure:
		return ServiceTypeTCPSecure
	case adapter == endpoint.AdapterTCP:
		return ServiceTypeTCP
	case secure:
		return ServiceTypeUDPSecure
	default:
		return ServiceTypeUDP
	}
}

// ParseServiceType is the inverse of ServiceType.
func ParseServiceType(t string) (endpoint.Adapter, bool, error) {
	switch t {
	case ServiceTypeUDP:
		return endpoint.AdapterUDP, false, nil
	case ServiceTypeUDPSecure:
		return endpoint.AdapterUDP, true, nil
	case ServiceTypeTCP:
		return endpoint.AdapterTCP, false, nil
	case ServiceTypeTCPSecure:
		return endpoint.AdapterTCP, true, nil
	default:
		return endpoint.AdapterUnknown, false, ErrUnknownServiceType
	}
}

// ServiceFor describes a bound listener. Duplicate services (the IPv4 and
// IPv6 sockets of one port) collapse in Info.Normalize.
func ServiceFor(adapter endpoint.Adapter, secure bool, addr net.Addr) (Service, error) {
	_, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return Service{}, err
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Service{}, err
	}
	return Service{Adapter: adapter, Secure: secure, Port: uint16(port)}, nil
}

// Info is what a node advertises.
type Info struct {
	// Instance is the DNS-SD instance name shared by all services.
	Instance string

	// DeviceID is the identity carried in the node's certificate. Optional.
	DeviceID string

	// Name is a human readable label. Optional.
	Name string

	Services []Service
}

// Normalize drops duplicate services. When one type is listed on several
// ports the first wins.
func (i *Info) Normalize() {
	seen := make(map[string]bool, len(i.Services))
	out := i.Services[:0]
	for _, s := range i.Services {
		if seen[s.Type()] {
			continue
		}
		seen[s.Type()] = true
		out = append(out, s)
	}
	i.Services = out
}

// Peer is a discovered service instance.
type Peer struct {
	Instance  string
	Host      string
	Port      uint16
	Addresses []string
	Adapter   endpoint.Adapter
	Secure    bool
	DeviceID  string
	Name      string
}

// Endpoints returns one endpoint per known address.
func (p *Peer) Endpoints() []endpoint.Endpoint {
	var flags endpoint.Flags
	if p.Secure {
		flags = endpoint.FlagSecure
	}
	out := make([]endpoint.Endpoint, 0, len(p.Addresses))
	for _, a := range p.Addresses {
		ip := net.ParseIP(a)
		if ip == nil {
			continue
		}
		f := flags | endpoint.FlagIPv6
		if ip.To4() != nil {
			f = flags | endpoint.FlagIPv4
		}
		out = append(out, endpoint.New(p.Adapter, f, a, p.Port))
	}
	return out
}
