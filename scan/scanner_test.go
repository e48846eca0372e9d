package scan

import (
	"context"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pharosdir/pharos"
	"github.com/pharosdir/pharos/wire"
)

// fakeDirectory answers existence queries from a fixed set of known IPs
// and records adds.
type fakeDirectory struct {
	known map[string]bool
	adds  [][]wire.Field
}

var _ pharos.Directory = (*fakeDirectory)(nil)

func (d *fakeDirectory) Query(ctx context.Context, text string) (wire.Result, error) {
	ip := strings.TrimPrefix(text, "ip=")
	if d.known[ip] {
		return wire.NewMatches(1, nil), nil
	}
	return wire.NewError(501, "No matches to your query"), nil
}

func (d *fakeDirectory) Add(ctx context.Context, fields ...wire.Field) (wire.Result, error) {
	d.adds = append(d.adds, fields)
	return wire.NewOk("Ok"), nil
}

func (d *fakeDirectory) Change(ctx context.Context, selectors []wire.Selector, changes []wire.Field, force bool) (wire.Result, error) {
	return wire.NewOk("Ok"), nil
}

func (d *fakeDirectory) Delete(ctx context.Context, selectors ...wire.Selector) (wire.Result, error) {
	return wire.NewOk("Ok"), nil
}

func (d *fakeDirectory) Execute(ctx context.Context, cmd *wire.Command) (wire.Result, error) {
	return wire.NewOk("Ok"), nil
}

func (d *fakeDirectory) ExecuteAuthenticated(ctx context.Context, cmd *wire.Command) (wire.Result, error) {
	return wire.NewOk("Ok"), nil
}

func listenPort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })
	return listener.Addr().(*net.TCPAddr).Port
}

func deadPort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()
	return port
}

func TestScannerFindsOpenPorts(t *testing.T) {
	open1 := listenPort(t)
	closed := deadPort(t)
	open2 := listenPort(t)

	scanner := &Scanner{
		Ports:       []int{open1, closed, open2},
		Timeout:     200 * time.Millisecond,
		Concurrency: 4,
	}
	nodes, err := scanner.Scan(context.Background(), "127.0.0.1/32")
	require.NoError(t, err)
	require.Len(t, nodes, 1)

	node := nodes[0]
	if node.IP.String() != "127.0.0.1" {
		t.Errorf("Expected node 127.0.0.1, got %s", node.IP)
	}
	require.Equal(t, []int{open1, open2}, node.OpenPorts)

	// Ephemeral ports carry no role information
	require.Equal(t, RoleUnknown, node.Role)
}

func TestScannerSkipsSilentHosts(t *testing.T) {
	scanner := &Scanner{
		Ports:       []int{deadPort(t)},
		Timeout:     200 * time.Millisecond,
		Concurrency: 2,
	}
	nodes, err := scanner.Scan(context.Background(), "127.0.0.1/32")
	require.NoError(t, err)
	require.Empty(t, nodes)
}

func TestScannerBadRange(t *testing.T) {
	var scanner Scanner
	_, err := scanner.Scan(context.Background(), "not-a-cidr")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not-a-cidr")
}

func TestScannerCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scanner := &Scanner{Ports: []int{deadPort(t)}}
	_, err := scanner.Scan(ctx, "127.0.0.1/32")
	require.ErrorIs(t, err, context.Canceled)
}

func TestArpTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arp")
	content := "IP address       HW type     Flags       HW address            Mask     Device\n" +
		"192.168.1.50     0x1         0x2         00:50:56:ab:cd:ef     *        eth0\n" +
		"192.168.1.77     0x1         0x0         00:00:00:00:00:00     *        eth0\n" +
		"bogus\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	table := arpTable(path)
	require.Equal(t, map[string]string{"192.168.1.50": "00:50:56:ab:cd:ef"}, table)
}

func TestArpTableMissingFile(t *testing.T) {
	require.Empty(t, arpTable(filepath.Join(t.TempDir(), "nope")))
}

func TestEnrich(t *testing.T) {
	arpPath := filepath.Join(t.TempDir(), "arp")
	content := "IP address       HW type     Flags       HW address            Mask     Device\n" +
		"127.0.0.1        0x1         0x2         00:50:56:aa:bb:cc     *        lo\n"
	require.NoError(t, os.WriteFile(arpPath, []byte(content), 0o644))

	scanner := &Scanner{ARPPath: arpPath}
	dir := &fakeDirectory{known: map[string]bool{"127.0.0.1": true}}

	nodes := []Node{
		{IP: netip.MustParseAddr("127.0.0.1"), OpenPorts: []int{22}, Role: RoleSSH},
		{IP: netip.MustParseAddr("192.0.2.9")},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	nodes = scanner.Enrich(ctx, nodes, dir)

	require.Equal(t, "00:50:56:aa:bb:cc", nodes[0].MAC)
	require.Equal(t, "VMware, Inc.", nodes[0].Manufacturer)
	require.True(t, nodes[0].Existing)

	require.Empty(t, nodes[1].MAC)
	require.Empty(t, nodes[1].Manufacturer)
	require.False(t, nodes[1].Existing)
}

func TestRegister(t *testing.T) {
	dir := &fakeDirectory{}
	node := Node{
		IP:       netip.MustParseAddr("192.168.1.50"),
		Hostname: "pve.lan",
		Role:     RoleHypervisor,
	}

	result, err := Register(context.Background(), dir, node, "pve", "admin")
	require.NoError(t, err)
	require.True(t, result.IsOk())

	require.Len(t, dir.adds, 1)
	fields := dir.adds[0]
	for _, want := range []wire.Field{
		{Name: "ip", Value: "192.168.1.50"},
		{Name: "hostname", Value: "pve.lan"},
		{Name: "alias", Value: "pve"},
		{Name: "owner", Value: "admin"},
		{Name: "type", Value: "machine"},
		{Name: "notes", Value: RoleHypervisor},
	} {
		require.Contains(t, fields, want)
	}
}

func TestRegisterWithoutRole(t *testing.T) {
	dir := &fakeDirectory{}
	node := Node{IP: netip.MustParseAddr("192.168.1.51")}

	_, err := Register(context.Background(), dir, node, "", "")
	require.NoError(t, err)

	require.Len(t, dir.adds, 1)
	for _, f := range dir.adds[0] {
		if f.Name == "notes" {
			t.Error("Expected no notes field for a node without a role")
		}
	}
}
