package ddns

import (
	"context"
	"fmt"
	"net/netip"
)

// FromString constructs a resolver that always returns the IPv4 address addr.
func FromString(addr string) (Resolver, error) {
	a, err := netip.ParseAddr(addr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse IP: %w", err)
	}
	if a = a.Unmap(); !a.Is4() {
		return nil, fmt.Errorf("%s: %w", a, ErrNotIPv4)
	}
	return stringResolver(a), nil
}

type stringResolver netip.Addr

func (s stringResolver) Resolve(context.Context) (netip.Addr, error) {
	return netip.Addr(s), nil
}
