package main

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/iotivity/ca-go/pkg/cert"
	"github.com/iotivity/ca-go/pkg/discovery"
	"github.com/iotivity/ca-go/pkg/endpoint"
	"github.com/iotivity/ca-go/pkg/transport"
	"github.com/iotivity/ca-go/pkg/wire"
)

// sender is the part of the adapter the node replies through.
type sender interface {
	Send(ep endpoint.Endpoint, payload []byte) error
}

// node handles adapter callbacks: it logs traffic and, in echo mode,
// answers every request with its own payload.
type node struct {
	logger *slog.Logger
	echo   bool
	out    sender
	msgID  atomic.Uint32

	// onMessage is an optional tap, e.g. the interactive shell.
	onMessage func(ep endpoint.Endpoint, s wire.Summary)
}

func (n *node) nextMessageID() uint16 {
	return uint16(n.msgID.Add(1))
}

func (n *node) OnMessage(ep endpoint.Endpoint, payload []byte) {
	stream := ep.Adapter == endpoint.AdapterTCP
	s, err := wire.Summarize(stream, payload)
	if err != nil {
		n.logger.Warn("undecodable message", "remote", ep, "size", len(payload), "error", err)
		return
	}
	n.logger.Debug("message", "remote", ep, "code", s.Code, "token", fmt.Sprintf("%x", s.Token), "payload_size", len(s.Payload))
	if n.onMessage != nil {
		n.onMessage(ep, s)
	}

	if !n.echo || !s.IsRequest() || n.out == nil {
		return
	}
	reply, err := wire.Reply(stream, s, wire.CodeContent, n.nextMessageID(), s.Payload)
	if err != nil {
		n.logger.Warn("building echo reply", "remote", ep, "error", err)
		return
	}
	if err := n.out.Send(ep, reply); err != nil {
		n.logger.Warn("echo reply not queued", "remote", ep, "error", err)
	}
}

func (n *node) OnConnectionStateChanged(ep endpoint.Endpoint, connected bool, isClient bool) {
	role := "server"
	if isClient {
		role = "client"
	}
	if connected {
		n.logger.Info("peer connected", "remote", ep, "role", role)
	} else {
		n.logger.Info("peer disconnected", "remote", ep, "role", role)
	}
}

func (n *node) OnSendError(ep endpoint.Endpoint, payload []byte, err error) {
	n.logger.Warn("send failed", "remote", ep, "size", len(payload), "error", err)
}

var _ transport.SendErrorHandler = (*node)(nil)

// ensureIdentity loads the certificate store and creates a self-signed
// identity when none exists yet.
func ensureIdentity(store *cert.FileStore, logger *slog.Logger) (*cert.Identity, error) {
	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("loading %s: %w", store.Dir(), err)
	}
	id, err := store.Identity()
	if err == nil {
		if id.IsExpired() {
			logger.Warn("device certificate expired", "expired_at", id.ExpiresAt())
		} else if id.NeedsRenewal() {
			logger.Warn("device certificate needs renewal", "expires_at", id.ExpiresAt())
		}
		return id, nil
	}
	if !errors.Is(err, cert.ErrCertNotFound) {
		return nil, err
	}

	id, err = cert.NewSelfSigned(uuid.New())
	if err != nil {
		return nil, err
	}
	if err := store.SetIdentity(id); err != nil {
		return nil, err
	}
	if err := store.Save(); err != nil {
		return nil, err
	}
	deviceID, _ := id.DeviceID()
	logger.Info("generated self-signed identity", "device_id", deviceID, "dir", store.Dir())
	return id, nil
}

// advertisement describes the bound listeners of a running adapter.
func advertisement(a *transport.Adapter, instance, deviceID string) (discovery.Info, error) {
	info := discovery.Info{Instance: instance, DeviceID: deviceID}
	for _, adapter := range []endpoint.Adapter{endpoint.AdapterUDP, endpoint.AdapterTCP} {
		for _, secure := range []bool{false, true} {
			addr := a.Addr(adapter, secure)
			if addr == nil {
				continue
			}
			svc, err := discovery.ServiceFor(adapter, secure, addr)
			if err != nil {
				return discovery.Info{}, err
			}
			info.Services = append(info.Services, svc)
		}
	}
	return info, nil
}
