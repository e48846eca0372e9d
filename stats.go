package pharos

import (
	"sync/atomic"
	"time"
)

// PoolStats contains statistics about a connection pool.
// All fields are safe for concurrent access.
//
// Struct is optimized to fit within a single cache line (64 bytes).
// Fields are ordered largest to smallest for optimal memory layout.
//
// For Prometheus integration, expose these as:
//   - Gauges: TotalConns, IdleConns, ActiveConns
//   - Counters: AcquireCount, AcquireWaitCount, CreatedConns, DestroyedConns, AcquireErrors
//   - Histogram: AcquireWaitDuration (use AcquireWaitCount and AcquireWaitTimeNs to calculate)
type PoolStats struct {
	// Lifetime counters (uint64 - 8 bytes each)
	AcquireCount      uint64 // Total acquire attempts
	AcquireWaitCount  uint64 // Acquires that had to wait
	CreatedConns      uint64 // Total connections created
	DestroyedConns    uint64 // Total connections destroyed
	AcquireErrors     uint64 // Failed acquire attempts
	AcquireWaitTimeNs uint64 // Total nanoseconds spent waiting

	// Current state gauges (int32 - 4 bytes each)
	TotalConns  int32 // Total connections in pool (active + idle)
	IdleConns   int32 // Idle connections available
	ActiveConns int32 // Connections currently in use
	_           int32 // Padding to align to 64 bytes
}

// ClientStats contains statistics about client operations.
// All fields are safe for concurrent access.
//
// Struct is optimized to fit within a single cache line (64 bytes).
//
// For Prometheus integration, expose these as:
//   - Counters: Queries, Adds, Changes, Deletes, Errors (with operation label)
//   - Counter: QueryHits (derive hit rate as QueryHits/Queries)
//   - Counter: MalformedLines (a rising rate means a confused server)
type ClientStats struct {
	Queries        uint64 // Total query operations
	Adds           uint64 // Total add operations
	Changes        uint64 // Total change operations
	Deletes        uint64 // Total delete operations
	QueryHits      uint64 // Queries that matched at least one record
	AuthRetries    uint64 // Operations retried after answering a challenge
	MalformedLines uint64 // Response lines skipped as unparsable
	Errors         uint64 // Total errors across all operations
}

// poolStatsCollector provides internal methods for updating pool stats.
// Not exported - pools update their own stats.
// The zero value is ready to use, so pools embed it directly.
type poolStatsCollector struct {
	stats PoolStats
}

func (c *poolStatsCollector) recordAcquire() {
	atomic.AddUint64(&c.stats.AcquireCount, 1)
}

func (c *poolStatsCollector) recordAcquireWait(duration time.Duration) {
	atomic.AddUint64(&c.stats.AcquireWaitCount, 1)
	atomic.AddUint64(&c.stats.AcquireWaitTimeNs, uint64(duration.Nanoseconds()))
}

func (c *poolStatsCollector) recordCreate() {
	atomic.AddUint64(&c.stats.CreatedConns, 1)
	atomic.AddInt32(&c.stats.TotalConns, 1)
}

// recordDestroy accounts for a checked-out connection being destroyed.
func (c *poolStatsCollector) recordDestroy() {
	atomic.AddUint64(&c.stats.DestroyedConns, 1)
	atomic.AddInt32(&c.stats.TotalConns, -1)
	atomic.AddInt32(&c.stats.ActiveConns, -1)
}

// recordDestroyIdle accounts for an idle connection being destroyed,
// which only happens when the pool shuts down.
func (c *poolStatsCollector) recordDestroyIdle() {
	atomic.AddUint64(&c.stats.DestroyedConns, 1)
	atomic.AddInt32(&c.stats.TotalConns, -1)
	atomic.AddInt32(&c.stats.IdleConns, -1)
}

func (c *poolStatsCollector) recordAcquireError() {
	atomic.AddUint64(&c.stats.AcquireErrors, 1)
}

func (c *poolStatsCollector) recordAcquireFromIdle() {
	atomic.AddInt32(&c.stats.IdleConns, -1)
	atomic.AddInt32(&c.stats.ActiveConns, 1)
}

func (c *poolStatsCollector) recordActivate() {
	atomic.AddInt32(&c.stats.ActiveConns, 1)
}

func (c *poolStatsCollector) recordRelease() {
	atomic.AddInt32(&c.stats.IdleConns, 1)
	atomic.AddInt32(&c.stats.ActiveConns, -1)
}

func (c *poolStatsCollector) snapshot() PoolStats {
	return PoolStats{
		TotalConns:        atomic.LoadInt32(&c.stats.TotalConns),
		IdleConns:         atomic.LoadInt32(&c.stats.IdleConns),
		ActiveConns:       atomic.LoadInt32(&c.stats.ActiveConns),
		AcquireCount:      atomic.LoadUint64(&c.stats.AcquireCount),
		AcquireWaitCount:  atomic.LoadUint64(&c.stats.AcquireWaitCount),
		CreatedConns:      atomic.LoadUint64(&c.stats.CreatedConns),
		DestroyedConns:    atomic.LoadUint64(&c.stats.DestroyedConns),
		AcquireErrors:     atomic.LoadUint64(&c.stats.AcquireErrors),
		AcquireWaitTimeNs: atomic.LoadUint64(&c.stats.AcquireWaitTimeNs),
	}
}

// clientStatsCollector provides internal methods for updating client stats.
// Not exported - client updates its own stats.
// The zero value is ready to use.
type clientStatsCollector struct {
	stats ClientStats
}

func (c *clientStatsCollector) recordQuery(hit bool) {
	atomic.AddUint64(&c.stats.Queries, 1)
	if hit {
		atomic.AddUint64(&c.stats.QueryHits, 1)
	}
}

func (c *clientStatsCollector) recordAdd() {
	atomic.AddUint64(&c.stats.Adds, 1)
}

func (c *clientStatsCollector) recordChange() {
	atomic.AddUint64(&c.stats.Changes, 1)
}

func (c *clientStatsCollector) recordDelete() {
	atomic.AddUint64(&c.stats.Deletes, 1)
}

func (c *clientStatsCollector) recordAuthRetry() {
	atomic.AddUint64(&c.stats.AuthRetries, 1)
}

func (c *clientStatsCollector) recordMalformed() {
	atomic.AddUint64(&c.stats.MalformedLines, 1)
}

func (c *clientStatsCollector) recordError() {
	atomic.AddUint64(&c.stats.Errors, 1)
}

func (c *clientStatsCollector) snapshot() ClientStats {
	return ClientStats{
		Queries:        atomic.LoadUint64(&c.stats.Queries),
		Adds:           atomic.LoadUint64(&c.stats.Adds),
		Changes:        atomic.LoadUint64(&c.stats.Changes),
		Deletes:        atomic.LoadUint64(&c.stats.Deletes),
		QueryHits:      atomic.LoadUint64(&c.stats.QueryHits),
		AuthRetries:    atomic.LoadUint64(&c.stats.AuthRetries),
		MalformedLines: atomic.LoadUint64(&c.stats.MalformedLines),
		Errors:         atomic.LoadUint64(&c.stats.Errors),
	}
}
