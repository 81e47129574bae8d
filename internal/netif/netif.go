// Package netif enumerates the addresses bound to local network interfaces.
//
// It is a thin read-only adapter over github.com/shirou/gopsutil/v3/net.
// gopsutil reports each address as a CIDR string ("192.168.1.10/24");
// this package splits it into a bare address plus an address-family tag so
// consumers can filter by family without parsing.
package netif

import (
	"fmt"
	"net"
	"strings"

	psnet "github.com/shirou/gopsutil/v3/net"
)

// Family is the address family of an interface address.
type Family string

const (
	// FamilyIPv4 tags IPv4 addresses.
	FamilyIPv4 Family = "IPv4"

	// FamilyIPv6 tags IPv6 addresses.
	FamilyIPv6 Family = "IPv6"
)

// Addr is one address bound to a network interface.
type Addr struct {
	// Interface is the OS name of the interface (e.g., "eth0", "lo").
	Interface string

	// Address is the bare IP address without prefix length or zone.
	Address string

	// Family is the address family of Address.
	Family Family
}

// Enumerator lists local interface addresses in discovery order.
type Enumerator interface {
	Addrs() ([]Addr, error)
}

// EnumeratorFunc adapts a plain function to the Enumerator interface.
type EnumeratorFunc func() ([]Addr, error)

// Addrs calls f.
func (f EnumeratorFunc) Addrs() ([]Addr, error) {
	return f()
}

// System enumerates the interfaces of the running machine.
type System struct{}

// Addrs returns every parseable address of every interface, in the order
// the OS reports interfaces and their addresses. Entries gopsutil cannot
// express as an IP (hardware-only records) are skipped.
func (System) Addrs() ([]Addr, error) {
	ifaces, err := psnet.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate network interfaces: %w", err)
	}

	var addrs []Addr
	for _, iface := range ifaces {
		for _, a := range iface.Addrs {
			ip := parseAddr(a.Addr)
			if ip == nil {
				continue
			}
			addrs = append(addrs, Addr{
				Interface: iface.Name,
				Address:   ip.String(),
				Family:    familyOf(ip),
			})
		}
	}
	return addrs, nil
}

// parseAddr accepts either CIDR notation or a bare address, with an
// optional IPv6 zone suffix ("fe80::1%eth0/64").
func parseAddr(s string) net.IP {
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, '%'); i >= 0 {
		s = s[:i]
	}
	return net.ParseIP(s)
}

func familyOf(ip net.IP) Family {
	if ip.To4() != nil {
		return FamilyIPv4
	}
	return FamilyIPv6
}
