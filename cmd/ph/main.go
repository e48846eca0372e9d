package main

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/pharosdir/pharos"
	"github.com/pharosdir/pharos/wire"
)

func main() {
	client, err := pharos.NewClient(pharos.ServersFromAddr(serverAddr()), pharos.Config{
		Identity: "ph-go/1.0",
		Signer:   &pharos.SSHKeySigner{},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create client: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	// One-shot mode: the arguments form a query.
	if args := os.Args[1:]; len(args) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		result, err := client.Query(ctx, strings.Join(args, " "))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		printResult(result)
		return
	}

	runInteractive(client)
}

func runInteractive(client *pharos.Client) {
	fmt.Println("Pharos Directory Tool")
	fmt.Println("=====================")
	fmt.Println("Commands: query <selectors>, add <field>=<value> ..., change <selectors> make <changes>, delete <selectors>, status, stats, help, quit")
	fmt.Println("Anything else runs as a query: name=alice")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("ph> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		command := strings.ToLower(parts[0])
		ctx := context.Background()

		switch command {
		case "query":
			if len(parts) < 2 {
				fmt.Println("Usage: query <selector> ...")
				continue
			}
			handleQuery(ctx, client, strings.Join(parts[1:], " "))

		case "add":
			if len(parts) < 2 {
				fmt.Println("Usage: add <field>=<value> ...")
				continue
			}
			handleAdd(ctx, client, parts[1:])

		case "change":
			handleChange(ctx, client, parts[1:])

		case "delete", "del":
			if len(parts) < 2 {
				fmt.Println("Usage: delete <selector> ...")
				continue
			}
			handleDelete(ctx, client, parts[1:])

		case "status":
			handleStatus(ctx, client)

		case "stats":
			handleStats(client)

		case "help":
			fmt.Println("Commands:")
			fmt.Println("  query <selector> ...                - Look up entries, e.g. query name=alice dept=physics")
			fmt.Println("  add <field>=<value> ...             - Create an entry")
			fmt.Println("  change <selector> make <field>=<v>  - Update matching entries (force instead of make to touch several)")
			fmt.Println("  delete <selector> ...               - Remove matching entries")
			fmt.Println("  status                              - Probe the server")
			fmt.Println("  stats                               - Show client statistics")
			fmt.Println("  quit                                - Exit")
			fmt.Println("A bare selector line is a query.")

		case "quit", "exit":
			fmt.Println("Goodbye!")
			return

		default:
			handleQuery(ctx, client, line)
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Printf("Error reading input: %v\n", err)
	}
}

func handleQuery(ctx context.Context, client *pharos.Client, text string) {
	start := time.Now()
	result, err := client.Query(ctx, text)
	duration := time.Since(start)

	if err != nil {
		fmt.Printf("Error: %v (took %v)\n", err, duration)
		return
	}

	switch {
	case result.IsMatches():
		printRecords(result.Records)
		fmt.Printf("%d matches (took %v)\n", result.Count, duration)
	case result.IsOk():
		fmt.Printf("%s (took %v)\n", result.Message, duration)
	default:
		fmt.Printf("%d:%s (took %v)\n", result.Code, result.Message, duration)
	}
}

func handleAdd(ctx context.Context, client *pharos.Client, tokens []string) {
	fields, err := parseFields(tokens)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	start := time.Now()
	result, err := client.Add(ctx, fields...)
	duration := time.Since(start)

	printOutcome(result, err, duration)
}

func handleChange(ctx context.Context, client *pharos.Client, tokens []string) {
	sep := -1
	force := false
	for i, token := range tokens {
		if token == "make" || token == "force" {
			sep = i
			force = token == "force"
			break
		}
	}
	if sep <= 0 || sep == len(tokens)-1 {
		fmt.Println("Usage: change <selector> ... make <field>=<value> ...")
		return
	}

	selectors := parseSelectors(tokens[:sep])
	changes, err := parseFields(tokens[sep+1:])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	start := time.Now()
	result, err := client.Change(ctx, selectors, changes, force)
	duration := time.Since(start)

	printOutcome(result, err, duration)
}

func handleDelete(ctx context.Context, client *pharos.Client, tokens []string) {
	start := time.Now()
	result, err := client.Delete(ctx, parseSelectors(tokens)...)
	duration := time.Since(start)

	printOutcome(result, err, duration)
}

func handleStatus(ctx context.Context, client *pharos.Client) {
	start := time.Now()
	result, err := client.Execute(ctx, wire.Status())
	duration := time.Since(start)

	if err != nil {
		fmt.Printf("Status failed: %v (took %v)\n", err, duration)
		return
	}
	if err := result.Err(); err != nil {
		fmt.Printf("Status failed: %v (took %v)\n", err, duration)
		return
	}
	fmt.Printf("Server is up: %s (took %v)\n", result.Message, duration)
}

func handleStats(client *pharos.Client) {
	stats := client.Stats()
	fmt.Println("Client statistics:")
	fmt.Printf("  Queries: %d (%d hits)\n", stats.Queries, stats.QueryHits)
	fmt.Printf("  Adds: %d, Changes: %d, Deletes: %d\n", stats.Adds, stats.Changes, stats.Deletes)
	fmt.Printf("  Auth retries: %d\n", stats.AuthRetries)
	fmt.Printf("  Malformed lines: %d\n", stats.MalformedLines)
	fmt.Printf("  Errors: %d\n", stats.Errors)

	pools := client.AllPoolStats()
	if len(pools) == 0 {
		fmt.Println("No server pools yet")
		return
	}
	for _, pool := range pools {
		fmt.Printf("Server %s:\n", pool.Addr)
		fmt.Printf("  Connections: %d total, %d idle, %d active\n",
			pool.PoolStats.TotalConns, pool.PoolStats.IdleConns, pool.PoolStats.ActiveConns)
		fmt.Printf("  Acquires: %d (%d waited, %d failed)\n",
			pool.PoolStats.AcquireCount, pool.PoolStats.AcquireWaitCount, pool.PoolStats.AcquireErrors)
		fmt.Printf("  Lifetime: %d created, %d destroyed\n",
			pool.PoolStats.CreatedConns, pool.PoolStats.DestroyedConns)
		if pool.CircuitBreakerState != "" {
			fmt.Printf("  Circuit breaker: %s\n", pool.CircuitBreakerState)
		}
	}
}

func printOutcome(result wire.Result, err error, duration time.Duration) {
	if err != nil {
		fmt.Printf("Error: %v (took %v)\n", err, duration)
		return
	}
	if err := result.Err(); err != nil {
		fmt.Printf("Error: %v (took %v)\n", err, duration)
		return
	}
	fmt.Printf("%s (took %v)\n", result.Message, duration)
}

func printResult(result wire.Result) {
	switch {
	case result.IsMatches():
		printRecords(result.Records)
	case result.IsOk():
		fmt.Println(result.Message)
	default:
		fmt.Printf("%d:%s\n", result.Code, result.Message)
	}
}

func printRecords(records []wire.Record) {
	for i, record := range records {
		if i > 0 {
			fmt.Println()
		}
		for _, field := range record.Fields {
			fmt.Printf("%15s: %s\n", field.Name, field.Value)
		}
	}
}

func parseSelectors(tokens []string) []wire.Selector {
	selectors := make([]wire.Selector, len(tokens))
	for i, token := range tokens {
		selectors[i] = wire.ParseSelector(token)
	}
	return selectors
}

func parseFields(tokens []string) ([]wire.Field, error) {
	fields := make([]wire.Field, 0, len(tokens))
	for _, token := range tokens {
		name, value, ok := strings.Cut(token, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("expected field=value, got %q", token)
		}
		fields = append(fields, wire.Field{Name: name, Value: value})
	}
	return fields, nil
}

// serverAddr resolves the directory address from the environment,
// defaulting to the local server.
func serverAddr() string {
	host := os.Getenv("PHAROS_HOST")
	if host == "" {
		host = "127.0.0.1"
	}
	if port := os.Getenv("PHAROS_PORT"); port != "" {
		return net.JoinHostPort(host, port)
	}
	return host
}
