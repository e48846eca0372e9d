package pharos_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/pharosdir/pharos"
	"github.com/pharosdir/pharos/wire"
)

// Example_query looks up entries with free-form query text.
func Example_query() {
	client, err := pharos.NewClient(pharos.ServersFromAddr("localhost:1050"), pharos.Config{})
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	ctx := context.Background()

	result, err := client.Query(ctx, "name=alice")
	if err != nil {
		log.Printf("Query failed: %v", err)
		return
	}

	if !result.IsMatches() {
		fmt.Println("No matches")
		return
	}
	for _, record := range result.Records {
		for _, field := range record.Fields {
			fmt.Printf("%s: %s\n", field.Name, field.Value)
		}
	}
}

// Example_authenticatedWrites creates and removes an entry. The signer
// answers the server's challenge; the command is retried once after the
// server accepts the signature.
func Example_authenticatedWrites() {
	client, err := pharos.NewClient(pharos.ServersFromAddr("localhost:1050"), pharos.Config{
		Signer: &pharos.SSHKeySigner{Path: "/home/alice/.ssh/id_ed25519"},
	})
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	ctx := context.Background()

	result, err := client.Add(ctx,
		wire.Field{Name: "type", Value: "person"},
		wire.Field{Name: "name", Value: "alice"},
		wire.Field{Name: "email", Value: "alice@example.org"},
	)
	if err != nil {
		log.Printf("Add failed: %v", err)
		return
	}
	if err := result.Err(); err != nil {
		log.Printf("Server rejected the add: %v", err)
		return
	}

	result, err = client.Delete(ctx, wire.Eq("name", "alice"))
	if err != nil {
		log.Printf("Delete failed: %v", err)
		return
	}
	fmt.Println(result.Message)
}

// ExampleNewLookup converts query outcomes into plain Go values and
// errors.
func ExampleNewLookup() {
	client, err := pharos.NewClient(pharos.ServersFromAddr("localhost:1050"), pharos.Config{})
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	lookup := pharos.NewLookup(client)

	email, err := lookup.FieldValue(context.Background(), wire.Eq("name", "alice"), "email")
	if err != nil {
		log.Printf("Lookup failed: %v", err)
		return
	}
	fmt.Println(email)
}

// ExampleClient_QueryAll fans one query out to every configured server
// and merges the matches.
func ExampleClient_QueryAll() {
	client, err := pharos.NewClient(pharos.ServersFromAddr("pharos1:1050", "pharos2:1050"), pharos.Config{})
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	merged, perServer, err := client.QueryAll(context.Background(), wire.Eq("dept", "physics"))
	if err != nil {
		log.Printf("QueryAll failed: %v", err)
		return
	}

	fmt.Printf("%d matches across %d servers\n", merged.Count, len(perServer))
}

// Example_circuitBreaker stops hammering a server that keeps failing.
func Example_circuitBreaker() {
	client, err := pharos.NewClient(pharos.ServersFromAddr("localhost:1050"), pharos.Config{
		NewCircuitBreaker: pharos.NewCircuitBreakerConfig(1, time.Minute, 30*time.Second),
	})
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	_, err = client.Query(context.Background(), "name=alice")
	if err != nil {
		log.Printf("Query failed: %v", err)
	}

	for _, pool := range client.AllPoolStats() {
		fmt.Printf("%s breaker: %s\n", pool.Addr, pool.CircuitBreakerState)
	}
}

// Example_stats inspects client and pool counters.
func Example_stats() {
	client, err := pharos.NewClient(pharos.ServersFromAddr("localhost:1050"), pharos.Config{})
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	if _, err := client.Query(context.Background(), "name=alice"); err != nil {
		log.Printf("Query failed: %v", err)
	}

	stats := client.Stats()
	fmt.Printf("queries=%d hits=%d errors=%d\n", stats.Queries, stats.QueryHits, stats.Errors)

	for _, pool := range client.AllPoolStats() {
		fmt.Printf("%s: %d conns, %d acquires\n", pool.Addr, pool.PoolStats.TotalConns, pool.PoolStats.AcquireCount)
	}
}
