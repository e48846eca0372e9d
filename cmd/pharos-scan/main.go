package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/pharosdir/pharos"
	"github.com/pharosdir/pharos/scan"
	"github.com/pharosdir/pharos/wire"
)

func main() {
	var (
		cidr        = flag.String("cidr", "", "Address range to sweep, e.g. 192.168.1.0/24")
		ports       = flag.String("ports", "", "Comma-separated ports to probe (default 22,80,443,8006,32400)")
		timeout     = flag.Duration("timeout", 500*time.Millisecond, "Per-port probe timeout")
		concurrency = flag.Int("concurrency", 64, "Number of addresses probed at once")
		ouiCSV      = flag.String("oui-csv", "", "Extra OUI prefixes, CSV lines of prefix,manufacturer")
		register    = flag.Bool("register", false, "Interactively register new nodes into the directory")
		keyPath     = flag.String("key", "", "SSH private key for authenticated registration")
	)
	flag.Parse()

	if *cidr == "" {
		fmt.Fprintln(os.Stderr, "Usage: pharos-scan -cidr 192.168.1.0/24 [-register]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	scanner := &scan.Scanner{
		Timeout:     *timeout,
		Concurrency: *concurrency,
	}
	if *ports != "" {
		parsed, err := parsePorts(*ports)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid ports: %v\n", err)
			os.Exit(2)
		}
		scanner.Ports = parsed
	}
	if *ouiCSV != "" {
		resolver := scan.NewOUIResolver()
		if err := resolver.LoadCSV(*ouiCSV); err != nil {
			fmt.Fprintf(os.Stderr, "loading OUI table: %v\n", err)
			os.Exit(2)
		}
		scanner.OUI = resolver
	}

	fmt.Printf("Scanning %s...\n", *cidr)
	nodes, err := scanner.Scan(ctx, *cidr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scan failed: %v\n", err)
		os.Exit(1)
	}
	if len(nodes) == 0 {
		fmt.Println("No nodes discovered.")
		return
	}

	addr := serverAddr()
	client, err := pharos.NewClient(pharos.ServersFromAddr(addr), pharos.Config{
		Identity: "pharos-scan/1.0",
		Signer:   &pharos.SSHKeySigner{Path: *keyPath},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "create client: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	// The pools dial lazily, so reach out once before trusting the
	// existence checks.
	var dir pharos.Directory
	pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
	_, err = client.Execute(pingCtx, wire.Status())
	pingCancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot reach directory at %s: %v, skipping existence check\n", addr, err)
	} else {
		dir = client
	}

	nodes = scanner.Enrich(ctx, nodes, dir)

	fmt.Printf("\nFound %d nodes in %s\n\n", len(nodes), *cidr)
	fmt.Printf("%-10s %-15s %-24s %-26s %-30s %s\n", "STATUS", "IP", "HOSTNAME", "MANUFACTURER", "ROLE", "OPEN PORTS")
	for _, node := range nodes {
		status := "[NEW]"
		if node.Existing {
			status = "[EXISTING]"
		}
		fmt.Printf("%-10s %-15s %-24s %-26s %-30s %s\n",
			status, node.IP, orUnknown(node.Hostname), node.Manufacturer, node.Role, portList(node.OpenPorts))
	}

	if !*register {
		return
	}
	if dir == nil {
		fmt.Fprintln(os.Stderr, "cannot register: no connection to the directory")
		os.Exit(1)
	}

	stdin := bufio.NewScanner(os.Stdin)
	for _, node := range nodes {
		if node.Existing {
			fmt.Printf("Skipping %s, already in the directory.\n", node.IP)
			continue
		}

		fmt.Printf("\n--- Registering %s (%s) ---\n", node.IP, orUnknown(node.Hostname))
		alias := promptLine(stdin, "Alias", strings.TrimSuffix(node.Hostname, ".local"))
		owner := promptLine(stdin, "Owner", "admin")

		result, err := scan.Register(ctx, dir, node, alias, owner)
		if err == nil {
			err = result.Err()
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "register %s: %v\n", node.IP, err)
			continue
		}
		fmt.Printf("Added %s: %s\n", node.IP, result.Message)
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

func parsePorts(spec string) ([]int, error) {
	var ports []int
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		port, err := strconv.Atoi(part)
		if err != nil || port < 1 || port > 65535 {
			return nil, fmt.Errorf("bad port %q", part)
		}
		ports = append(ports, port)
	}
	if len(ports) == 0 {
		return nil, fmt.Errorf("no ports in %q", spec)
	}
	return ports, nil
}

func portList(ports []int) string {
	parts := make([]string, len(ports))
	for i, port := range ports {
		parts[i] = strconv.Itoa(port)
	}
	return strings.Join(parts, ",")
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func promptLine(stdin *bufio.Scanner, label, fallback string) string {
	if fallback != "" {
		fmt.Printf("%s [%s]: ", label, fallback)
	} else {
		fmt.Printf("%s: ", label)
	}
	if !stdin.Scan() {
		return fallback
	}
	if text := strings.TrimSpace(stdin.Text()); text != "" {
		return text
	}
	return fallback
}
