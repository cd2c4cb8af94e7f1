package discovery

import (
	"context"
	"net"

	"github.com/enbility/zeroconf/v3"
)

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string
}

type browseFunc func(ctx context.Context, service, domain string, entries, removed chan *zeroconf.ServiceEntry, opts ...zeroconf.ClientOption) error

func zeroconfBrowse(ctx context.Context, service, domain string, entries, removed chan *zeroconf.ServiceEntry, opts ...zeroconf.ClientOption) error {
	return zeroconf.Browse(ctx, service, domain, entries, removed, opts...)
}

// Browser finds CoAP services on the local link.
type Browser struct {
	config BrowserConfig
	browse browseFunc
}

// NewBrowser creates a browser.
func NewBrowser(config BrowserConfig) *Browser {
	return &Browser{config: config, browse: zeroconfBrowse}
}

// Browse searches for services of one type. Entries for the same instance
// seen on several interfaces are merged; a peer is emitted once, when first
// seen. The channel closes when ctx is done.
func (b *Browser) Browse(ctx context.Context, serviceType string) (<-chan *Peer, error) {
	adapter, secure, err := ParseServiceType(serviceType)
	if err != nil {
		return nil, err
	}

	out := make(chan *Peer)
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func() {
		defer close(out)

		peers := make(map[string]*Peer)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				p := entryToPeer(entry)
				if p == nil {
					continue
				}
				p.Adapter, p.Secure = adapter, secure

				if existing, found := peers[p.Instance]; found {
					existing.Addresses = mergeAddresses(existing.Addresses, p.Addresses)
					continue
				}
				peers[p.Instance] = p
				select {
				case out <- p:
				case <-ctx.Done():
					return
				}

			case entry, ok := <-removed:
				if !ok {
					removed = nil
					continue
				}
				if existing, found := peers[entry.Instance]; found {
					existing.Addresses = removeAddresses(existing.Addresses, entry)
					if len(existing.Addresses) == 0 {
						delete(peers, entry.Instance)
					}
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		_ = b.browse(ctx, serviceType, Domain, entries, removed, b.options()...)
	}()

	return out, nil
}

// Find browses until the named instance shows up.
func (b *Browser) Find(ctx context.Context, serviceType, instance string) (*Peer, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results, err := b.Browse(ctx, serviceType)
	if err != nil {
		return nil, err
	}
	for {
		select {
		case p, ok := <-results:
			if !ok {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				return nil, ErrNotFound
			}
			if p.Instance == instance {
				return p, nil
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (b *Browser) options() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption
	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}
	return opts
}

// entryToPeer converts a zeroconf entry. Entries without a valid TXT
// record are not ours and yield nil.
func entryToPeer(entry *zeroconf.ServiceEntry) *Peer {
	p := &Peer{
		Instance: entry.Instance,
		Host:     entry.HostName,
		Port:     uint16(entry.Port),
	}
	if err := DecodeTXT(StringsToTXTRecords(entry.Text), p); err != nil {
		return nil
	}
	p.Addresses = make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		p.Addresses = append(p.Addresses, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		p.Addresses = append(p.Addresses, ip.String())
	}
	return p
}

// mergeAddresses adds new addresses to existing list, avoiding duplicates.
func mergeAddresses(existing, add []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}
	for _, addr := range add {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

// removeAddresses drops the addresses of entry from the list.
func removeAddresses(addresses []string, entry *zeroconf.ServiceEntry) []string {
	toRemove := make(map[string]bool)
	for _, ip := range entry.AddrIPv4 {
		toRemove[ip.String()] = true
	}
	for _, ip := range entry.AddrIPv6 {
		toRemove[ip.String()] = true
	}

	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !toRemove[addr] {
			result = append(result, addr)
		}
	}
	return result
}
