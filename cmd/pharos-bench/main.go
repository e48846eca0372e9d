package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pharosdir/pharos"
	"github.com/pharosdir/pharos/wire"
)

type OperationType string

const (
	QueryHit    OperationType = "query-hit"
	QueryMiss   OperationType = "query-miss"
	AddEntry    OperationType = "add"
	DeleteEntry OperationType = "delete"
	All         OperationType = "all"
)

type BenchmarkResult struct {
	Operation    OperationType
	Duration     time.Duration
	TotalOps     int64
	Successes    int64
	Failures     int64
	AvgLatency   time.Duration
	OpsPerSecond float64
	Correctness  bool
	ErrorMessage string
}

// correctnessError marks a benchmark failure where the server answered,
// but with the wrong outcome.
type correctnessError struct {
	msg string
}

func (e *correctnessError) Error() string {
	return e.msg
}

func main() {
	var (
		operation   = flag.String("operation", "all", "Operation type: query-hit, query-miss, add, delete, or all")
		duration    = flag.Duration("duration", 5*time.Second, "Duration to run benchmarks")
		concurrency = flag.Int("concurrency", 1, "Number of concurrent workers")
		servers     = flag.String("servers", "127.0.0.1:1050", "Comma-separated list of directory servers")
		keyPath     = flag.String("key", "", "SSH private key for authenticated operations")
	)
	flag.Parse()

	fmt.Printf("Pharos Benchmark Tool\n")
	fmt.Printf("=====================\n")
	fmt.Printf("Operation: %s\n", *operation)
	fmt.Printf("Duration: %v\n", *duration)
	fmt.Printf("Concurrency: %d\n", *concurrency)
	fmt.Printf("Servers: %s\n", *servers)
	fmt.Println()

	client, err := pharos.NewClient(pharos.ServersFromAddr(strings.Split(*servers, ",")...), pharos.Config{
		Identity: "pharos-bench/1.0",
		Signer:   &pharos.SSHKeySigner{Path: *keyPath},
		MaxSize:  int32(*concurrency),
	})
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	// Test connection first
	fmt.Print("Testing connection...")
	ctx := context.Background()
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	_, err = client.Execute(probeCtx, wire.Status())
	cancel()
	if err != nil {
		fmt.Printf(" failed: %v\n", err)
		fmt.Printf("Make sure a pharos server is running on %s\n", *servers)
		return
	}
	fmt.Println(" success!")
	fmt.Println()

	if OperationType(*operation) == All {
		runAllOperations(ctx, client, *duration, *concurrency)
	} else {
		result := runSingleOperation(ctx, client, OperationType(*operation), *duration, *concurrency)
		printResult(result)
	}
}

func runAllOperations(ctx context.Context, client *pharos.Client, duration time.Duration, concurrency int) {
	operations := []OperationType{QueryHit, QueryMiss, AddEntry, DeleteEntry}

	for _, op := range operations {
		fmt.Printf("\n--- Running %s benchmark ---\n", op)
		result := runSingleOperation(ctx, client, op, duration, concurrency)
		printResult(result)

		// Short pause between operations
		time.Sleep(500 * time.Millisecond)
	}
}

func runSingleOperation(ctx context.Context, client *pharos.Client, operation OperationType, duration time.Duration, concurrency int) *BenchmarkResult {
	switch operation {
	case QueryHit:
		return runQueryHitBenchmark(ctx, client, duration, concurrency)
	case QueryMiss:
		return runQueryMissBenchmark(ctx, client, duration, concurrency)
	case AddEntry:
		return runAddBenchmark(ctx, client, duration, concurrency)
	case DeleteEntry:
		return runDeleteBenchmark(ctx, client, duration, concurrency)
	default:
		return &BenchmarkResult{
			Operation:    operation,
			Correctness:  false,
			ErrorMessage: fmt.Sprintf("Unknown operation: %s", operation),
		}
	}
}

// Query-hit: seed one entry, then query it over and over.
func runQueryHitBenchmark(ctx context.Context, client *pharos.Client, duration time.Duration, concurrency int) *BenchmarkResult {
	name := fmt.Sprintf("bench-hit-%d", time.Now().UnixNano())

	fmt.Printf("Seeding entry %s for the query-hit test...\n", name)
	result, err := client.Add(ctx,
		wire.Field{Name: "type", Value: "person"},
		wire.Field{Name: "name", Value: name},
		wire.Field{Name: "email", Value: name + "@bench.invalid"},
	)
	if err == nil {
		err = result.Err()
	}
	if err != nil {
		return &BenchmarkResult{
			Operation:    QueryHit,
			Correctness:  false,
			ErrorMessage: fmt.Sprintf("Failed to seed entry: %v", err),
		}
	}
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client.Delete(cleanupCtx, wire.Eq("name", name))
	}()

	fmt.Printf("Starting query-hit benchmark with %d workers for %v...\n", concurrency, duration)
	return runLoop(ctx, QueryHit, duration, concurrency, func(ctx context.Context, workerID, opCount int) error {
		result, err := client.Query(ctx, "name="+name)
		if err != nil {
			return err
		}
		if !result.IsMatches() {
			return &correctnessError{msg: fmt.Sprintf("expected a match for %s, got %s", name, result.Kind)}
		}
		return nil
	})
}

// Query-miss: query names that cannot exist.
func runQueryMissBenchmark(ctx context.Context, client *pharos.Client, duration time.Duration, concurrency int) *BenchmarkResult {
	return runLoop(ctx, QueryMiss, duration, concurrency, func(ctx context.Context, workerID, opCount int) error {
		result, err := client.Query(ctx, fmt.Sprintf("name=bench-missing-%d-%d", workerID, opCount))
		if err != nil {
			return err
		}
		if result.IsMatches() {
			return &correctnessError{msg: "expected no matches, got entries"}
		}
		return nil
	})
}

// Add: create a unique entry per operation.
func runAddBenchmark(ctx context.Context, client *pharos.Client, duration time.Duration, concurrency int) *BenchmarkResult {
	runID := time.Now().UnixNano()

	return runLoop(ctx, AddEntry, duration, concurrency, func(ctx context.Context, workerID, opCount int) error {
		name := fmt.Sprintf("bench-add-%d-%d-%d", runID, workerID, opCount)
		result, err := client.Add(ctx,
			wire.Field{Name: "type", Value: "person"},
			wire.Field{Name: "name", Value: name},
			wire.Field{Name: "email", Value: name + "@bench.invalid"},
		)
		if err != nil {
			return err
		}
		return result.Err()
	})
}

// Delete: create an entry and remove it again in the same operation.
func runDeleteBenchmark(ctx context.Context, client *pharos.Client, duration time.Duration, concurrency int) *BenchmarkResult {
	runID := time.Now().UnixNano()

	return runLoop(ctx, DeleteEntry, duration, concurrency, func(ctx context.Context, workerID, opCount int) error {
		name := fmt.Sprintf("bench-del-%d-%d-%d", runID, workerID, opCount)
		result, err := client.Add(ctx,
			wire.Field{Name: "type", Value: "person"},
			wire.Field{Name: "name", Value: name},
		)
		if err == nil {
			err = result.Err()
		}
		if err != nil {
			return fmt.Errorf("seeding entry: %w", err)
		}

		result, err = client.Delete(ctx, wire.Eq("name", name))
		if err != nil {
			return err
		}
		return result.Err()
	})
}

// runLoop drives the workers and aggregates counters. The work function
// runs until the duration elapses; returned errors count as failures, and
// a correctnessError additionally fails the correctness verdict.
func runLoop(ctx context.Context, operation OperationType, duration time.Duration, concurrency int, work func(ctx context.Context, workerID, opCount int) error) *BenchmarkResult {
	result := &BenchmarkResult{Operation: operation, Correctness: true}
	var totalOps, successes, failures int64
	var totalLatency int64

	var mu sync.Mutex
	recordFailure := func(err error) {
		atomic.AddInt64(&failures, 1)
		mu.Lock()
		if result.ErrorMessage == "" {
			result.ErrorMessage = err.Error()
		}
		var cerr *correctnessError
		if errors.As(err, &cerr) {
			result.Correctness = false
		}
		mu.Unlock()
	}

	startTime := time.Now()
	var wg sync.WaitGroup

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			for opCount := 0; time.Since(startTime) < duration; opCount++ {
				opStart := time.Now()
				err := work(ctx, workerID, opCount)
				latency := time.Since(opStart)

				atomic.AddInt64(&totalOps, 1)
				atomic.AddInt64(&totalLatency, int64(latency))

				if err != nil {
					recordFailure(err)
				} else {
					atomic.AddInt64(&successes, 1)
				}
			}
		}(i)
	}

	wg.Wait()

	result.Duration = time.Since(startTime)
	result.TotalOps = totalOps
	result.Successes = successes
	result.Failures = failures

	if totalOps > 0 {
		result.AvgLatency = time.Duration(totalLatency / totalOps)
		result.OpsPerSecond = float64(totalOps) / result.Duration.Seconds()
	}

	return result
}

func printResult(result *BenchmarkResult) {
	fmt.Printf("Operation: %s\n", result.Operation)
	fmt.Printf("Duration: %v\n", result.Duration)
	fmt.Printf("Total Operations: %d\n", result.TotalOps)
	fmt.Printf("Successes: %d\n", result.Successes)
	fmt.Printf("Failures: %d\n", result.Failures)
	if result.TotalOps > 0 {
		fmt.Printf("Success Rate: %.2f%%\n", float64(result.Successes)/float64(result.TotalOps)*100)
		fmt.Printf("Ops/sec: %.2f\n", result.OpsPerSecond)
		fmt.Printf("Avg Latency: %v\n", result.AvgLatency)
	}
	fmt.Printf("Correctness: %t\n", result.Correctness)
	if result.ErrorMessage != "" {
		fmt.Printf("Error: %s\n", result.ErrorMessage)
	}
	fmt.Println()
}
