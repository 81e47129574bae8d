package port

import (
	"fmt"
	"sync"

	"github.com/shinji-kodama/portwatch/internal/netif"
)

// fixedAliases always head the alias list. On Unix the first two behave as
// true aliases of each other, on Windows each one is a separate listening
// address, so all of them are probed.
var fixedAliases = []string{"0.0.0.0", "127.0.0.1", ipv6Loopback, ""}

// ipv6Loopback is the only fixed alias that may be missing on a machine.
const ipv6Loopback = "::1"

// AliasResolver computes, once, the list of host strings treated as this
// machine for bind probing.
//
// Only IPv4 interface addresses are added: IPv6 addresses behave as true
// aliases of ::1 on every supported platform, while IPv4 ones may not.
type AliasResolver struct {
	enum netif.Enumerator

	once    sync.Once
	aliases []string
	err     error
}

// NewAliasResolver returns a resolver that enumerates interfaces through
// enum on first use.
func NewAliasResolver(enum netif.Enumerator) *AliasResolver {
	return &AliasResolver{enum: enum}
}

// Aliases returns the alias list: the fixed entries followed by every local
// IPv4 address, each once, in discovery order.
//
// The list is built on the first call and cached for the lifetime of the
// resolver, including an enumeration error. The returned slice is a copy.
func (r *AliasResolver) Aliases() ([]string, error) {
	r.once.Do(r.build)
	if r.err != nil {
		return nil, r.err
	}
	out := make([]string, len(r.aliases))
	copy(out, r.aliases)
	return out, nil
}

// Contains reports whether host is literally one of the aliases.
func (r *AliasResolver) Contains(host string) (bool, error) {
	r.once.Do(r.build)
	if r.err != nil {
		return false, r.err
	}
	for _, a := range r.aliases {
		if a == host {
			return true, nil
		}
	}
	return false, nil
}

func (r *AliasResolver) build() {
	addrs, err := r.enum.Addrs()
	if err != nil {
		r.err = fmt.Errorf("failed to resolve local host aliases: %w", err)
		return
	}

	aliases := make([]string, len(fixedAliases), len(fixedAliases)+len(addrs))
	copy(aliases, fixedAliases)
	seen := make(map[string]bool, cap(aliases))
	for _, a := range fixedAliases {
		seen[a] = true
	}

	for _, a := range addrs {
		if a.Family != netif.FamilyIPv4 || seen[a.Address] {
			continue
		}
		seen[a.Address] = true
		aliases = append(aliases, a.Address)
	}
	r.aliases = aliases
}
