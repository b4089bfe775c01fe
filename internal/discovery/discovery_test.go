package discovery

import (
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
)

func TestEntryToPeerPrefersIPv4(t *testing.T) {
	entry := &zeroconf.ServiceEntry{
		HostName: "node1.local.",
		Port:     4242,
		AddrIPv4: []net.IP{net.ParseIP("192.0.2.10")},
		AddrIPv6: []net.IP{net.ParseIP("2001:db8::1")},
	}

	peer := entryToPeer(entry)

	if peer.HostName != "node1.local." {
		t.Errorf("expected hostname to be preserved, got %q", peer.HostName)
	}
	if peer.Address != "192.0.2.10:4242" {
		t.Errorf("expected IPv4 address to be preferred, got %q", peer.Address)
	}
}

func TestEntryToPeerFallsBackToIPv6(t *testing.T) {
	entry := &zeroconf.ServiceEntry{
		HostName: "node2.local.",
		Port:     4242,
		AddrIPv6: []net.IP{net.ParseIP("2001:db8::1")},
	}

	peer := entryToPeer(entry)

	if peer.Address != "[2001:db8::1]:4242" {
		t.Errorf("expected IPv6 fallback address, got %q", peer.Address)
	}
}

func TestEntryToPeerNoAddress(t *testing.T) {
	entry := &zeroconf.ServiceEntry{HostName: "node3.local.", Port: 4242}
	peer := entryToPeer(entry)
	if peer.Address != "" {
		t.Errorf("expected empty address when no IPs are present, got %q", peer.Address)
	}
}
