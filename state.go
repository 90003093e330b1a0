package ddns

import (
	"net/netip"
	"sync"
)

// State holds the last public address a client observed.
//
// It lives for the lifetime of the process and is never written to disk.
// The zero value is ready to use and holds no address.
type State struct {
	mu   sync.Mutex
	addr netip.Addr
}

// Last returns the last committed address, or the zero netip.Addr if none.
func (s *State) Last() netip.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *State) commit(a netip.Addr) {
	s.mu.Lock()
	s.addr = a
	s.mu.Unlock()
}
