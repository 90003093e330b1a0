package ddns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
)

// InterfaceResolver constructs a resolver that returns the first IPv4 address reported by the given interfaces.
// If no interfaces are provided then all interfaces will be used, but loopback addresses will be skipped.
//
// This is only useful when the host holds its public address directly, e.g. on a PPPoE link.
func InterfaceResolver(iface ...string) Resolver {
	return interfaceResolver{ifaces: iface}
}

type interfaceResolver struct {
	ifaces []string
}

func (r interfaceResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	var errs []error
	var addrs []net.Addr
	if len(r.ifaces) == 0 {
		a, err := net.InterfaceAddrs()
		if err != nil {
			return netip.Addr{}, fmt.Errorf("error getting addresses for interfaces: %w", err)
		}
		addrs = a
	}
	for _, ifs := range r.ifaces {
		iface, err := net.InterfaceByName(ifs)
		if err != nil {
			errs = append(errs, fmt.Errorf("error getting interface %s by name: %w", ifs, err))
			continue
		}
		a, err := iface.Addrs()
		if err != nil {
			errs = append(errs, fmt.Errorf("error looking up addresses for interface %s: %w", ifs, err))
			continue
		}
		addrs = append(addrs, a...)
	}

	// addr: ip+net:192.168.86.253/24
	// addr: ip+net:fe80::2cc9:801b:3551:9a43/64
	for _, addr := range addrs {
		ip, err := netip.ParsePrefix(addr.String())
		if err != nil {
			errs = append(errs, fmt.Errorf("error parsing local ip %s: %s", addr.String(), err))
			continue
		}
		a := ip.Addr().Unmap()
		if a.IsLoopback() || !a.Is4() {
			continue
		}
		return a, nil
	}
	errs = append(errs, ErrNoAddress)
	return netip.Addr{}, fmt.Errorf("no IPv4 address found on interfaces %v: %w", r.ifaces, errors.Join(errs...))
}
