// Package discovery implements LAN peer discovery via mDNS, wiring the
// teacher's transitive-only github.com/grandcat/zeroconf dependency as a
// supplement to the teacher's static-SeedNodes HTTP polling (network.go's
// DiscoverNodes): a Register/Browse pair that surfaces nodes on the same
// network segment without a pre-shared seed list.
package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/grandcat/zeroconf"

	"github.com/freenet/plugin-wot/internal/logging"
)

// ServiceName is the mDNS service type this daemon advertises and browses
// for, mirroring the teacher's "/api/nodes" well-known discovery endpoint
// generalized into a service name.
const ServiceName = "_wotd._tcp"

// Peer is one discovered node, analogous to the teacher's Node struct's
// Address field.
type Peer struct {
	HostName string
	Port     int
	Address  string
}

// Advertiser registers this daemon under ServiceName so peers on the LAN
// can find it, the advertise-side counterpart of Browse.
type Advertiser struct {
	server *zeroconf.Server
}

// Advertise registers instanceName at port, with text records carrying any
// extra key=value metadata (e.g. the node's public request key).
func Advertise(instanceName string, port int, text []string) (*Advertiser, error) {
	server, err := zeroconf.Register(instanceName, ServiceName, "local.", port, text, nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: register: %w", err)
	}
	return &Advertiser{server: server}, nil
}

// Shutdown stops advertising.
func (a *Advertiser) Shutdown() {
	a.server.Shutdown()
}

// Browser discovers peers advertising ServiceName on the LAN.
type Browser struct {
	resolver *zeroconf.Resolver

	mu    sync.RWMutex
	peers map[string]Peer
}

// NewBrowser constructs a Browser. Call Start to begin discovery.
func NewBrowser() (*Browser, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: new resolver: %w", err)
	}
	return &Browser{resolver: resolver, peers: make(map[string]Peer)}, nil
}

// Start runs peer discovery until ctx is cancelled, adding or replacing a
// peer (keyed by host name) as each entry arrives. Peers are never removed
// from the set.
func (b *Browser) Start(ctx context.Context) error {
	entries := make(chan *zeroconf.ServiceEntry, 16)

	go func() {
		for entry := range entries {
			peer := entryToPeer(entry)
			b.mu.Lock()
			b.peers[peer.HostName] = peer
			b.mu.Unlock()
			logging.Logger.Debug("discovered peer", "host", peer.HostName, "address", peer.Address)
		}
	}()

	if err := b.resolver.Browse(ctx, ServiceName, "local.", entries); err != nil {
		return fmt.Errorf("discovery: browse: %w", err)
	}
	return nil
}

// Peers returns a snapshot of currently known peers.
func (b *Browser) Peers() []Peer {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Peer, 0, len(b.peers))
	for _, p := range b.peers {
		out = append(out, p)
	}
	return out
}

// entryToPeer converts a zeroconf.ServiceEntry into a Peer, preferring the
// first advertised IPv4 address.
func entryToPeer(entry *zeroconf.ServiceEntry) Peer {
	addr := ""
	if len(entry.AddrIPv4) > 0 {
		addr = net.JoinHostPort(entry.AddrIPv4[0].String(), fmt.Sprint(entry.Port))
	} else if len(entry.AddrIPv6) > 0 {
		addr = net.JoinHostPort(entry.AddrIPv6[0].String(), fmt.Sprint(entry.Port))
	}
	return Peer{
		HostName: entry.HostName,
		Port:     entry.Port,
		Address:  addr,
	}
}
