package pharos

import (
	"errors"
	"net"
	"strconv"
	"strings"

	"github.com/pharosdir/pharos/wire"
)

var ErrNoServers = errors.New("pharos: no servers available")

// Servers is the set of directory servers a client spreads commands over.
// The list order must be stable: selectors map keys to list positions.
type Servers interface {
	List() []string
}

type staticServers struct {
	addresses []string
}

// ServersFromAddr builds a fixed server set. Addresses without a port get
// the protocol default.
func ServersFromAddr(addresses ...string) Servers {
	if len(addresses) == 0 {
		panic("ServersFromAddr requires at least one address")
	}

	normalized := make([]string, len(addresses))
	for i, addr := range addresses {
		normalized[i] = NormalizeAddr(addr)
	}
	return &staticServers{
		addresses: normalized,
	}
}

func (s *staticServers) List() []string {
	return s.addresses
}

// NormalizeAddr appends the default directory port to addresses that lack
// one. Addresses that already carry a port pass through unchanged.
func NormalizeAddr(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	// JoinHostPort brackets IPv6 hosts itself.
	host := strings.TrimSuffix(strings.TrimPrefix(addr, "["), "]")
	return net.JoinHostPort(host, strconv.Itoa(wire.DefaultPort))
}
