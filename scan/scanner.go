// Package scan discovers machines on a network and reconciles them with
// the directory. It sweeps an address range with TCP probes, guesses a
// role from the open ports, resolves hardware vendors from MAC prefixes
// and can register unknown machines.
package scan

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/pharosdir/pharos"
	"github.com/pharosdir/pharos/wire"
)

// DefaultPorts are the service ports probed on every address. They are
// the ports role inference knows about.
var DefaultPorts = []int{22, 80, 443, 8006, 32400}

const (
	defaultProbeTimeout = 500 * time.Millisecond
	defaultConcurrency  = 64
	defaultARPPath      = "/proc/net/arp"
)

// Node is one discovered network asset.
type Node struct {
	IP           netip.Addr
	Hostname     string
	MAC          string
	Manufacturer string
	OpenPorts    []int
	Role         string
	Existing     bool
}

// Scanner sweeps an address range for reachable machines. The zero value
// probes DefaultPorts with sensible limits.
type Scanner struct {
	// Ports to probe on each address. Empty means DefaultPorts.
	Ports []int

	// Timeout bounds each port probe. Zero means 500ms.
	Timeout time.Duration

	// Concurrency caps the number of addresses probed at once.
	// Zero means 64.
	Concurrency int

	// OUI resolves MAC prefixes to manufacturers. Nil means the built-in
	// table.
	OUI *OUIResolver

	// ARPPath is where to read the kernel ARP cache from. Empty means
	// /proc/net/arp.
	ARPPath string
}

// Scan probes every address in the CIDR range and returns the nodes that
// answered on at least one port, sorted by address. Each node comes back
// with its open ports and inferred role; Enrich fills in the rest.
func (s *Scanner) Scan(ctx context.Context, cidr string) ([]Node, error) {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return nil, fmt.Errorf("parsing range %q: %w", cidr, err)
	}
	prefix = prefix.Masked()

	pool, err := ants.NewPool(s.concurrency())
	if err != nil {
		return nil, fmt.Errorf("creating probe pool: %w", err)
	}
	defer pool.Release()

	var (
		mu    sync.Mutex
		nodes []Node
		wg    sync.WaitGroup
	)
	for addr := prefix.Addr(); prefix.Contains(addr); addr = addr.Next() {
		if ctx.Err() != nil {
			break
		}
		ip := addr
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			open := s.probe(ctx, ip)
			if len(open) == 0 {
				return
			}
			node := Node{IP: ip, OpenPorts: open, Role: InferRole(open)}
			mu.Lock()
			nodes = append(nodes, node)
			mu.Unlock()
		})
		if submitErr != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("submitting probe: %w", submitErr)
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].IP.Less(nodes[j].IP) })
	return nodes, nil
}

// probe tries every configured port on one address and reports the open
// ones, in configuration order.
func (s *Scanner) probe(ctx context.Context, ip netip.Addr) []int {
	dialer := net.Dialer{Timeout: s.timeout()}

	var open []int
	for _, port := range s.ports() {
		if ctx.Err() != nil {
			return open
		}
		addr := netip.AddrPortFrom(ip, uint16(port)).String()
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			continue
		}
		conn.Close()
		open = append(open, port)
	}
	return open
}

// Enrich fills in hostname, hardware vendor and directory presence for
// every node. Lookups are best effort: a node that cannot be resolved
// keeps its zero fields. A nil directory skips the existence check.
func (s *Scanner) Enrich(ctx context.Context, nodes []Node, dir pharos.Directory) []Node {
	arp := arpTable(s.arpPath())
	resolver := s.OUI
	if resolver == nil {
		resolver = NewOUIResolver()
	}

	for i := range nodes {
		node := &nodes[i]

		if names, err := net.DefaultResolver.LookupAddr(ctx, node.IP.String()); err == nil && len(names) > 0 {
			node.Hostname = strings.TrimSuffix(names[0], ".")
		}

		if mac, ok := arp[node.IP.String()]; ok {
			node.MAC = mac
			if vendor, ok := resolver.Resolve(mac); ok {
				node.Manufacturer = vendor
			}
		}

		if dir != nil {
			if result, err := dir.Query(ctx, "ip="+node.IP.String()); err == nil {
				node.Existing = result.IsMatches()
			}
		}
	}
	return nodes
}

// Register adds a discovered node to the directory as a machine record.
// The role, when known, lands in the notes field.
func Register(ctx context.Context, dir pharos.Directory, node Node, alias, owner string) (wire.Result, error) {
	fields := []wire.Field{
		{Name: "ip", Value: node.IP.String()},
		{Name: "hostname", Value: node.Hostname},
		{Name: "alias", Value: alias},
		{Name: "owner", Value: owner},
		{Name: "type", Value: "machine"},
	}
	if node.Role != "" {
		fields = append(fields, wire.Field{Name: "notes", Value: node.Role})
	}
	return dir.Add(ctx, fields...)
}

func (s *Scanner) ports() []int {
	if len(s.Ports) == 0 {
		return DefaultPorts
	}
	return s.Ports
}

func (s *Scanner) timeout() time.Duration {
	if s.Timeout <= 0 {
		return defaultProbeTimeout
	}
	return s.Timeout
}

func (s *Scanner) concurrency() int {
	if s.Concurrency <= 0 {
		return defaultConcurrency
	}
	return s.Concurrency
}

func (s *Scanner) arpPath() string {
	if s.ARPPath == "" {
		return defaultARPPath
	}
	return s.ARPPath
}
