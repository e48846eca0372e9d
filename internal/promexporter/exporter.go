// Package promexporter bridges client statistics into Prometheus metrics.
package promexporter

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pharosdir/pharos"
)

// Gauge values for circuit breaker states.
const (
	stateClosed   = 0
	stateHalfOpen = 1
	stateOpen     = 2
)

// Exporter translates client and pool statistics into Prometheus metrics.
// Client counters are cumulative snapshots, so every update publishes the
// delta since the previous one.
type Exporter struct {
	client *pharos.Client

	mu       sync.Mutex
	last     pharos.ClientStats
	lastPool map[string]pharos.PoolStats

	queriesTotal     *prometheus.CounterVec
	opsTotal         *prometheus.CounterVec
	authRetriesTotal prometheus.Counter
	malformedTotal   prometheus.Counter
	errorsTotal      prometheus.Counter

	poolConnections    *prometheus.GaugeVec
	poolAcquiresTotal  *prometheus.CounterVec
	poolWaitSeconds    *prometheus.CounterVec
	poolCreatedTotal   *prometheus.CounterVec
	poolDestroyedTotal *prometheus.CounterVec
	poolAcquireErrors  *prometheus.CounterVec
	breakerState       *prometheus.GaugeVec
}

// New creates an exporter for client and registers its metrics on registry.
func New(client *pharos.Client, registry *prometheus.Registry) *Exporter {
	e := &Exporter{
		client:   client,
		lastPool: make(map[string]pharos.PoolStats),
		queriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pharos_queries_total",
				Help: "Total queries by result",
			},
			[]string{"result"}, // hit, miss
		),
		opsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pharos_operations_total",
				Help: "Total mutating operations",
			},
			[]string{"op"}, // add, change, delete
		),
		authRetriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pharos_auth_retries_total",
				Help: "Operations retried after answering an authentication challenge",
			},
		),
		malformedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pharos_malformed_lines_total",
				Help: "Response lines skipped as unparsable",
			},
		),
		errorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pharos_errors_total",
				Help: "Total errors across all operations",
			},
		),
		poolConnections: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pharos_pool_connections",
				Help: "Connection pool gauges",
			},
			[]string{"server", "state"}, // total, active, idle
		),
		poolAcquiresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pharos_pool_acquires_total",
				Help: "Total connection acquire attempts",
			},
			[]string{"server"},
		),
		poolWaitSeconds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pharos_pool_acquire_wait_seconds_total",
				Help: "Total time spent waiting for a connection",
			},
			[]string{"server"},
		),
		poolCreatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pharos_pool_connections_created_total",
				Help: "Total connections created",
			},
			[]string{"server"},
		),
		poolDestroyedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pharos_pool_connections_destroyed_total",
				Help: "Total connections destroyed",
			},
			[]string{"server"},
		),
		poolAcquireErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pharos_pool_acquire_errors_total",
				Help: "Total failed connection acquires",
			},
			[]string{"server"},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pharos_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"server"},
		),
	}

	registry.MustRegister(
		e.queriesTotal,
		e.opsTotal,
		e.authRetriesTotal,
		e.malformedTotal,
		e.errorsTotal,
		e.poolConnections,
		e.poolAcquiresTotal,
		e.poolWaitSeconds,
		e.poolCreatedTotal,
		e.poolDestroyedTotal,
		e.poolAcquireErrors,
		e.breakerState,
	)

	return e
}

// Update refreshes every metric from the current statistics snapshots.
func (e *Exporter) Update() {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := e.client.Stats()
	e.queriesTotal.WithLabelValues("hit").Add(float64(stats.QueryHits - e.last.QueryHits))
	misses := (stats.Queries - stats.QueryHits) - (e.last.Queries - e.last.QueryHits)
	e.queriesTotal.WithLabelValues("miss").Add(float64(misses))
	e.opsTotal.WithLabelValues("add").Add(float64(stats.Adds - e.last.Adds))
	e.opsTotal.WithLabelValues("change").Add(float64(stats.Changes - e.last.Changes))
	e.opsTotal.WithLabelValues("delete").Add(float64(stats.Deletes - e.last.Deletes))
	e.authRetriesTotal.Add(float64(stats.AuthRetries - e.last.AuthRetries))
	e.malformedTotal.Add(float64(stats.MalformedLines - e.last.MalformedLines))
	e.errorsTotal.Add(float64(stats.Errors - e.last.Errors))
	e.last = stats

	for _, sp := range e.client.AllPoolStats() {
		cur, prev := sp.PoolStats, e.lastPool[sp.Addr]

		e.poolConnections.WithLabelValues(sp.Addr, "total").Set(float64(cur.TotalConns))
		e.poolConnections.WithLabelValues(sp.Addr, "active").Set(float64(cur.ActiveConns))
		e.poolConnections.WithLabelValues(sp.Addr, "idle").Set(float64(cur.IdleConns))

		e.poolAcquiresTotal.WithLabelValues(sp.Addr).Add(float64(cur.AcquireCount - prev.AcquireCount))
		waitDelta := time.Duration(cur.AcquireWaitTimeNs - prev.AcquireWaitTimeNs)
		e.poolWaitSeconds.WithLabelValues(sp.Addr).Add(waitDelta.Seconds())
		e.poolCreatedTotal.WithLabelValues(sp.Addr).Add(float64(cur.CreatedConns - prev.CreatedConns))
		e.poolDestroyedTotal.WithLabelValues(sp.Addr).Add(float64(cur.DestroyedConns - prev.DestroyedConns))
		e.poolAcquireErrors.WithLabelValues(sp.Addr).Add(float64(cur.AcquireErrors - prev.AcquireErrors))
		e.lastPool[sp.Addr] = cur

		if sp.CircuitBreakerState != "" {
			e.breakerState.WithLabelValues(sp.Addr).Set(float64(breakerStateValue(sp.CircuitBreakerState)))
		}
	}
}

// Run updates the metrics on interval until ctx is done.
func (e *Exporter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Update()
		}
	}
}

func breakerStateValue(state string) int {
	switch state {
	case "half-open":
		return stateHalfOpen
	case "open":
		return stateOpen
	default:
		return stateClosed
	}
}
