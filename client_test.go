package pharos

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharosdir/pharos/wire"
)

func TestNewClientNoServers(t *testing.T) {
	_, err := NewClient(nil, Config{})
	if !errors.Is(err, ErrNoServers) {
		t.Errorf("NewClient(nil) error = %v, want %v", err, ErrNoServers)
	}
}

func TestClientQuery(t *testing.T) {
	log := &commandLog{}
	addr := createListener(t, pharosServer(matchResponder(log)))

	client, err := NewClient(ServersFromAddr(addr), Config{})
	require.NoError(t, err)
	defer client.Close()

	result, err := client.Query(context.Background(), "hostname=node-01")
	require.NoError(t, err)

	require.True(t, result.IsMatches())
	assert.Equal(t, 1, result.Count)
	assert.Equal(t, []string{"query hostname=node-01"}, log.all())

	stats := client.Stats()
	assert.Equal(t, uint64(1), stats.Queries)
	assert.Equal(t, uint64(1), stats.QueryHits)
}

func TestClientQueryMiss(t *testing.T) {
	addr := createListener(t, pharosServer(errorResponder("501:No matches to your query")))

	client, err := NewClient(ServersFromAddr(addr), Config{})
	require.NoError(t, err)
	defer client.Close()

	// Server-reported errors are results, not Go errors.
	result, err := client.Query(context.Background(), "hostname=nowhere")
	require.NoError(t, err)

	require.True(t, result.IsError())
	assert.Equal(t, wire.CodeNoMatches, result.Code)

	stats := client.Stats()
	assert.Equal(t, uint64(1), stats.Queries)
	assert.Equal(t, uint64(0), stats.QueryHits)
}

func TestClientDefaultIdentity(t *testing.T) {
	identityCh := make(chan string, 1)
	addr := createListener(t, func(conn net.Conn) {
		reader := bufio.NewReader(conn)
		writeLines(conn, "200:ready")

		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		identityCh <- strings.TrimRight(line, "\r\n")
		writeLines(conn, "200:Ok")

		for {
			raw, err := reader.ReadString('\n')
			if err != nil || strings.TrimRight(raw, "\r\n") == "quit" {
				return
			}
			writeLines(conn, "501:No matches")
		}
	})

	client, err := NewClient(ServersFromAddr(addr), Config{})
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Query(context.Background(), "hostname=node-01")
	require.NoError(t, err)

	select {
	case identity := <-identityCh:
		assert.Equal(t, "id "+DefaultIdentity, identity)
	case <-time.After(time.Second):
		t.Fatal("server never saw the identity line")
	}
}

func TestClientRouting(t *testing.T) {
	logA := &commandLog{}
	logB := &commandLog{}
	addrA := createListener(t, pharosServer(matchResponder(logA)))
	addrB := createListener(t, pharosServer(matchResponder(logB)))

	client, err := NewClient(ServersFromAddr(addrA, addrB), Config{
		SelectServer: func(key string, serverCount int) int {
			if key == "alpha" {
				return 0
			}
			return 1
		},
	})
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Execute(context.Background(), wire.Query(wire.Eq("hostname", "alpha")))
	require.NoError(t, err)
	_, err = client.Execute(context.Background(), wire.Query(wire.Eq("hostname", "zulu")))
	require.NoError(t, err)

	assert.Equal(t, []string{"query hostname=alpha"}, logA.all())
	assert.Equal(t, []string{"query hostname=zulu"}, logB.all())

	// One pool per routed-to server, reported in address order.
	stats := client.AllPoolStats()
	require.Len(t, stats, 2)
	assert.True(t, stats[0].Addr < stats[1].Addr)
}

func TestClientAuthentication(t *testing.T) {
	signer := staticSigner{publicKey: "ssh-ed25519 AAAAC3Nz pulse@host", signature: "c2ln"}
	log := &commandLog{}
	addr := createListener(t, pharosServerEach(authResponder("9fd3", signer.publicKey, signer.signature, log)))

	client, err := NewClient(ServersFromAddr(addr), Config{Signer: signer})
	require.NoError(t, err)
	defer client.Close()

	result, err := client.Add(context.Background(), wire.Field{Name: "type", Value: "machine"}, wire.Field{Name: "name", Value: "node-01"})
	require.NoError(t, err)
	require.True(t, result.IsOk())

	stats := client.Stats()
	assert.Equal(t, uint64(1), stats.Adds)
	assert.Equal(t, uint64(1), stats.AuthRetries)

	// The pooled connection is authenticated now, no second challenge.
	result, err = client.Add(context.Background(), wire.Field{Name: "type", Value: "machine"}, wire.Field{Name: "name", Value: "node-02"})
	require.NoError(t, err)
	require.True(t, result.IsOk())

	stats = client.Stats()
	assert.Equal(t, uint64(2), stats.Adds)
	assert.Equal(t, uint64(1), stats.AuthRetries)
}

func TestClientChangeAndDelete(t *testing.T) {
	signer := staticSigner{publicKey: "pub", signature: "sig"}
	log := &commandLog{}
	addr := createListener(t, pharosServerEach(authResponder("9fd3", signer.publicKey, signer.signature, log)))

	client, err := NewClient(ServersFromAddr(addr), Config{Signer: signer})
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Change(context.Background(),
		[]wire.Selector{wire.Eq("hostname", "node-01")},
		[]wire.Field{{Name: "ip", Value: "10.0.0.40"}},
		true)
	require.NoError(t, err)

	_, err = client.Delete(context.Background(), wire.Eq("hostname", "node-01"))
	require.NoError(t, err)

	commands := log.all()
	assert.Contains(t, commands, `change hostname=node-01 force ip="10.0.0.40"`)
	assert.Contains(t, commands, "delete hostname=node-01")

	stats := client.Stats()
	assert.Equal(t, uint64(1), stats.Changes)
	assert.Equal(t, uint64(1), stats.Deletes)
}

func TestClientKeepsConnAfterServerError(t *testing.T) {
	addr := createListener(t, pharosServer(errorResponder("598:Unknown command")))

	client, err := NewClient(ServersFromAddr(addr), Config{})
	require.NoError(t, err)
	defer client.Close()

	for i := 0; i < 3; i++ {
		result, err := client.Query(context.Background(), "whatever")
		require.NoError(t, err)
		require.True(t, result.IsError())
	}

	stats := client.AllPoolStats()
	require.Len(t, stats, 1)
	assert.Equal(t, uint64(1), stats[0].PoolStats.CreatedConns)
	assert.Equal(t, uint64(0), stats[0].PoolStats.DestroyedConns)
}

func TestClientDestroysConnAfterTimeout(t *testing.T) {
	addr := createListener(t, pharosServer(func(string) []string { return nil }))

	client, err := NewClient(ServersFromAddr(addr), Config{})
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	result, err := client.Query(ctx, "hostname=node-01")
	require.NoError(t, err)
	require.True(t, result.Timeout())

	// Resource destruction runs in the background.
	require.Eventually(t, func() bool {
		stats := client.AllPoolStats()
		return len(stats) == 1 && stats[0].PoolStats.DestroyedConns == 1
	}, time.Second, 5*time.Millisecond)
}

func TestClientCircuitBreakerOpens(t *testing.T) {
	// An address nothing listens on: dials fail fast.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	listener.Close()

	client, err := NewClient(ServersFromAddr(addr), Config{
		NewCircuitBreaker: NewCircuitBreakerConfig(1, 0, time.Minute),
	})
	require.NoError(t, err)
	defer client.Close()

	for i := 0; i < 3; i++ {
		_, err := client.Query(context.Background(), "hostname=node-01")
		require.Error(t, err)
	}

	// Three straight failures trip the breaker.
	_, err = client.Query(context.Background(), "hostname=node-01")
	require.ErrorIs(t, err, gobreaker.ErrOpenState)

	stats := client.AllPoolStats()
	require.Len(t, stats, 1)
	assert.Equal(t, gobreaker.StateOpen.String(), stats[0].CircuitBreakerState)

	clientStats := client.Stats()
	assert.Equal(t, uint64(4), clientStats.Errors)
}

func TestClientMalformedLineHook(t *testing.T) {
	addr := createListener(t, pharosServer(func(string) []string {
		return []string{
			"102:There was 1 match to your request",
			"garbage in the stream",
			"-200:1:hostname: node-01",
			"200:Ok",
		}
	}))

	type malformed struct{ addr, raw string }
	seen := make(chan malformed, 4)

	client, err := NewClient(ServersFromAddr(addr), Config{
		OnMalformedLine: func(serverAddr, raw string) {
			seen <- malformed{serverAddr, raw}
		},
	})
	require.NoError(t, err)
	defer client.Close()

	result, err := client.Query(context.Background(), "hostname=node-01")
	require.NoError(t, err)
	require.True(t, result.IsMatches())

	select {
	case m := <-seen:
		assert.Equal(t, addr, m.addr)
		assert.Equal(t, "garbage in the stream", m.raw)
	default:
		t.Fatal("malformed line hook never fired")
	}

	assert.Equal(t, uint64(1), client.Stats().MalformedLines)
}

func TestClientConstructorInjection(t *testing.T) {
	addr := createListener(t, pharosServer(matchResponder(nil)))

	dialed := 0
	client, err := NewClient(ServersFromAddr("unroutable.invalid:1050"), Config{
		constructor: func(ctx context.Context) (*Conn, error) {
			dialed++
			return Dial(ctx, addr, "test/1.0")
		},
	})
	require.NoError(t, err)
	defer client.Close()

	result, err := client.Query(context.Background(), "hostname=node-01")
	require.NoError(t, err)
	require.True(t, result.IsMatches())
	assert.Equal(t, 1, dialed)
}

func TestClientChannelPool(t *testing.T) {
	addr := createListener(t, pharosServer(matchResponder(nil)))

	client, err := NewClient(ServersFromAddr(addr), Config{Pool: NewChannelPool})
	require.NoError(t, err)
	defer client.Close()

	for i := 0; i < 3; i++ {
		result, err := client.Query(context.Background(), "hostname=node-01")
		require.NoError(t, err)
		require.True(t, result.IsMatches())
	}

	stats := client.AllPoolStats()
	require.Len(t, stats, 1)
	assert.Equal(t, uint64(1), stats[0].PoolStats.CreatedConns)
	assert.Equal(t, uint64(3), stats[0].PoolStats.AcquireCount)
}

func TestClientHealthCheckReapsIdle(t *testing.T) {
	addr := createListener(t, pharosServer(matchResponder(nil)))

	client, err := NewClient(ServersFromAddr(addr), Config{
		MaxConnIdleTime:     time.Millisecond,
		HealthCheckInterval: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Query(context.Background(), "hostname=node-01")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		stats := client.AllPoolStats()
		return len(stats) == 1 && stats[0].PoolStats.DestroyedConns >= 1
	}, 2*time.Second, 10*time.Millisecond, "idle connection was never reaped")
}

func TestClientUseAfterClose(t *testing.T) {
	addr := createListener(t, pharosServer(matchResponder(nil)))

	client, err := NewClient(ServersFromAddr(addr), Config{})
	require.NoError(t, err)

	_, err = client.Query(context.Background(), "hostname=node-01")
	require.NoError(t, err)

	client.Close()

	_, err = client.Query(context.Background(), "hostname=node-01")
	require.Error(t, err)
}

func TestClientQueryAll(t *testing.T) {
	respondWith := func(hostname string) func(string) []string {
		return func(string) []string {
			return []string{
				"102:There was 1 match to your request",
				"-200:1:hostname: " + hostname,
				"200:Ok",
			}
		}
	}
	addrA := createListener(t, pharosServer(respondWith("alpha")))
	addrB := createListener(t, pharosServer(respondWith("beta")))

	client, err := NewClient(ServersFromAddr(addrA, addrB), Config{})
	require.NoError(t, err)
	defer client.Close()

	merged, perServer, err := client.QueryAll(context.Background(), wire.Eq("type", "machine"))
	require.NoError(t, err)

	require.True(t, merged.IsMatches())
	assert.Equal(t, 2, merged.Count)
	require.Len(t, merged.Records, 2)

	// Records stay in server order.
	first, _ := merged.Records[0].Get("hostname")
	second, _ := merged.Records[1].Get("hostname")
	assert.Equal(t, "alpha", first)
	assert.Equal(t, "beta", second)

	require.Len(t, perServer, 2)
	assert.Equal(t, addrA, perServer[0].Addr)
	assert.Equal(t, addrB, perServer[1].Addr)
}

func TestClientQueryAllPartialMatches(t *testing.T) {
	addrA := createListener(t, pharosServer(matchResponder(nil)))
	addrB := createListener(t, pharosServer(errorResponder("501:No matches")))

	client, err := NewClient(ServersFromAddr(addrA, addrB), Config{})
	require.NoError(t, err)
	defer client.Close()

	merged, perServer, err := client.QueryAll(context.Background(), wire.Eq("type", "machine"))
	require.NoError(t, err)

	require.True(t, merged.IsMatches())
	assert.Equal(t, 1, merged.Count)

	require.Len(t, perServer, 2)
	assert.True(t, perServer[0].Result.IsMatches())
	assert.True(t, perServer[1].Result.IsError())
}

func TestClientQueryAllNothingMatches(t *testing.T) {
	addrA := createListener(t, pharosServer(errorResponder("501:No matches")))
	addrB := createListener(t, pharosServer(errorResponder("501:No matches")))

	client, err := NewClient(ServersFromAddr(addrA, addrB), Config{})
	require.NoError(t, err)
	defer client.Close()

	merged, _, err := client.QueryAll(context.Background(), wire.Eq("type", "machine"))
	require.NoError(t, err)

	require.True(t, merged.IsError())
	assert.Equal(t, wire.CodeNoMatches, merged.Code)
}

func TestLookup(t *testing.T) {
	addr := createListener(t, pharosServer(matchResponder(nil)))

	client, err := NewClient(ServersFromAddr(addr), Config{})
	require.NoError(t, err)
	defer client.Close()

	lookup := NewLookup(client)

	records, err := lookup.Find(context.Background(), wire.Eq("hostname", "node-01"))
	require.NoError(t, err)
	require.Len(t, records, 1)

	record, err := lookup.FindOne(context.Background(), wire.Eq("hostname", "node-01"))
	require.NoError(t, err)
	name, _ := record.Get("hostname")
	assert.Equal(t, "node-01", name)

	ip, err := lookup.FieldValue(context.Background(), wire.Eq("hostname", "node-01"), "ip")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.17", ip)

	_, err = lookup.FieldValue(context.Background(), wire.Eq("hostname", "node-01"), "rack")
	require.Error(t, err)
}

func TestLookupNoMatch(t *testing.T) {
	addr := createListener(t, pharosServer(errorResponder("501:No matches")))

	client, err := NewClient(ServersFromAddr(addr), Config{})
	require.NoError(t, err)
	defer client.Close()

	lookup := NewLookup(client)

	_, err = lookup.Find(context.Background(), wire.Eq("hostname", "nowhere"))
	var serverErr *wire.ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, wire.CodeNoMatches, serverErr.Code)

	_, err = lookup.FindOne(context.Background(), wire.Eq("hostname", "nowhere"))
	require.Error(t, err)
}
