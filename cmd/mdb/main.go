package main

import (
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
	args := os.Args[1:]
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: mdb <query>")
		fmt.Fprintln(os.Stderr, "Example: mdb hostname=srv01")
		os.Exit(1)
	}

	client, err := pharos.NewClient(pharos.ServersFromAddr(serverAddr()), pharos.Config{
		Identity: "mdb-go/1.0",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := client.Query(ctx, strings.Join(args, " "))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	switch {
	case result.IsMatches():
		fmt.Printf("There were %d matches to your request.\n", result.Count)
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
