package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// AdvertiserConfig configures advertiser behavior.
type AdvertiserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// TTL is the DNS record TTL.
	TTL time.Duration

	Logger *slog.Logger
}

// DefaultAdvertiserConfig returns the default advertiser configuration.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{TTL: DefaultTTL}
}

// registration is a running zeroconf responder.
type registration interface {
	SetText(txt []string)
	Shutdown()
}

type registerFunc func(instance, service, domain string, port int, txt []string, ifaces []net.Interface, opts ...zeroconf.ServerOption) (registration, error)

func zeroconfRegister(instance, service, domain string, port int, txt []string, ifaces []net.Interface, opts ...zeroconf.ServerOption) (registration, error) {
	return zeroconf.Register(instance, service, domain, port, txt, ifaces, opts...)
}

// Advertiser publishes a node's services. One responder runs per service
// type.
type Advertiser struct {
	config   AdvertiserConfig
	logger   *slog.Logger
	register registerFunc

	mu      sync.Mutex
	info    *Info
	servers map[string]registration // keyed by service type
}

// NewAdvertiser creates an advertiser.
func NewAdvertiser(config AdvertiserConfig) *Advertiser {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Advertiser{
		config:   config,
		logger:   logger,
		register: zeroconfRegister,
		servers:  make(map[string]registration),
	}
}

// interfaces returns the network interfaces to use for advertising.
// Returns nil to use all interfaces.
func (a *Advertiser) interfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}
	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		a.logger.Warn("mdns interface not found, using all", "interface", a.config.Interface, "error", err)
		return nil
	}
	return []net.Interface{*iface}
}

// Advertise publishes every service in info, replacing an earlier
// advertisement. On failure nothing stays registered.
func (a *Advertiser) Advertise(ctx context.Context, info Info) error {
	if err := ValidateInstanceName(info.Instance); err != nil {
		return err
	}
	info.Services = append([]Service(nil), info.Services...)
	info.Normalize()
	if len(info.Services) == 0 {
		return ErrNoServices
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked()

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}
	ifaces := a.interfaces()
	txt := TXTRecordsToStrings(EncodeTXT(&info))

	for _, svc := range info.Services {
		if err := ctx.Err(); err != nil {
			a.stopLocked()
			return err
		}
		server, err := a.register(info.Instance, svc.Type(), Domain, int(svc.Port), txt, ifaces, opts...)
		if err != nil {
			a.stopLocked()
			return fmt.Errorf("registering %s: %w", svc.Type(), err)
		}
		a.servers[svc.Type()] = server
		a.logger.Info("advertising", "instance", info.Instance, "service", svc.Type(), "port", svc.Port)
	}
	a.info = &info
	return nil
}

// Update replaces the TXT records of a running advertisement. Instance and
// services are unchanged.
func (a *Advertiser) Update(deviceID, name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.info == nil {
		return ErrNotFound
	}
	a.info.DeviceID = deviceID
	a.info.Name = name
	txt := TXTRecordsToStrings(EncodeTXT(a.info))
	for _, server := range a.servers {
		server.SetText(txt)
	}
	return nil
}

// Advertised returns the current advertisement, if any.
func (a *Advertiser) Advertised() (Info, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.info == nil {
		return Info{}, false
	}
	return *a.info, true
}

// Stop withdraws all services.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked()
}

func (a *Advertiser) stopLocked() {
	for t, server := range a.servers {
		server.Shutdown()
		delete(a.servers, t)
	}
	a.info = nil
}
