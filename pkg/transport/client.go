package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/iotivity/ca-go/pkg/endpoint"
	"github.com/iotivity/ca-go/pkg/session"
)

// Dial opens a client socket for ep. TCP connections are retried with
// backoff up to DialAttempts; UDP reuses a listener socket of the same
// family and security, or an ephemeral one.
func (a *Adapter) Dial(ctx context.Context, ep endpoint.Endpoint) (session.Socket, error) {
	if !a.running.Load() {
		return nil, ErrNotRunning
	}
	switch ep.Adapter {
	case endpoint.AdapterTCP:
		return a.dialStream(ctx, ep)
	case endpoint.AdapterUDP:
		return a.dialPacket(ep)
	default:
		return nil, ErrInvalidEndpoint
	}
}

func (a *Adapter) dialStream(ctx context.Context, ep endpoint.Endpoint) (session.Socket, error) {
	dialer := &net.Dialer{Timeout: a.cfg.DialTimeout}
	network := endpointNetwork(ep)
	backoff := NewBackoff(a.cfg.DialBackoff)

	var lastErr error
	for attempt := 1; attempt <= a.cfg.DialAttempts; attempt++ {
		conn, err := dialer.DialContext(ctx, network, ep.HostPort())
		if err == nil {
			a.logger.Debug("dialed", "remote", ep, "attempt", attempt)
			return a.newStream(ep, conn), nil
		}
		lastErr = err
		if attempt == a.cfg.DialAttempts {
			break
		}

		delay := backoff.Next()
		a.logger.Debug("dial failed, retrying", "remote", ep, "attempt", attempt, "delay", delay, "error", err)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", a.cfg.DialAttempts, lastErr)
}

func (a *Adapter) dialPacket(ep endpoint.Endpoint) (session.Socket, error) {
	network := endpointNetwork(ep)
	addr, err := net.ResolveUDPAddr(network, ep.HostPort())
	if err != nil {
		return nil, err
	}
	pc, err := a.packetConn(network, ep.IsSecure())
	if err != nil {
		return nil, err
	}
	return &datagramSocket{pc: pc, addr: addr}, nil
}

// packetConn returns a UDP socket whose replies reach the receiver loop
// with the right security flag.
func (a *Adapter) packetConn(network string, secure bool) (net.PacketConn, error) {
	for _, l := range a.listeners {
		if l.packet == nil || l.cfg.Secure != secure {
			continue
		}
		if ln := l.cfg.Network(); ln == network || ln == "udp" {
			return l.packet, nil
		}
	}

	key := fmt.Sprintf("%s/%t", network, secure)
	a.mu.Lock()
	defer a.mu.Unlock()
	if pc, ok := a.clientPCs[key]; ok {
		return pc, nil
	}
	pc, err := net.ListenPacket(network, ":0")
	if err != nil {
		return nil, err
	}
	a.clientPCs[key] = pc
	a.wg.Add(1)
	go a.packetLoop(pc, secure)
	return pc, nil
}

// resolveEndpoint replaces a host name with its first address so replies,
// which always carry an IP, find the same session.
func resolveEndpoint(ctx context.Context, ep endpoint.Endpoint) (endpoint.Endpoint, error) {
	if net.ParseIP(ep.Address) != nil {
		return ep, nil
	}
	ips, err := net.DefaultResolver.LookupIP(ctx, "ip", ep.Address)
	if err != nil {
		return ep, fmt.Errorf("%w: %s: %v", ErrConnectFailed, ep.Address, err)
	}
	ip := ips[0]
	for _, candidate := range ips {
		if candidate.To4() != nil {
			ip = candidate
			break
		}
	}
	flags := ep.Flags &^ endpoint.FamilyMask
	if ip.To4() != nil {
		flags |= endpoint.FlagIPv4
	} else {
		flags |= endpoint.FlagIPv6
	}
	return endpoint.New(ep.Adapter, flags, ip.String(), ep.Port), nil
}

func endpointNetwork(ep endpoint.Endpoint) string {
	network := ep.Adapter.Network()
	switch {
	case ep.Flags.Has(endpoint.FlagIPv4):
		return network + "4"
	case ep.Flags.Has(endpoint.FlagIPv6):
		return network + "6"
	default:
		return network
	}
}
