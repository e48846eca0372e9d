package pharos

import (
	"context"
	"errors"
	"time"
)

// ErrPoolClosed is returned by Acquire after the pool has been closed.
var ErrPoolClosed = errors.New("pharos: pool closed")

// Constructor dials and hands back one ready connection, handshake
// included. Pools call it when they need to grow.
type Constructor func(ctx context.Context) (*Conn, error)

// PoolFactory builds a connection pool around a constructor. Two
// implementations ship with the package: NewChannelPool and NewPuddlePool.
type PoolFactory func(constructor Constructor, maxSize int32) (Pool, error)

// Pool manages the connections to a single server.
type Pool interface {
	// Acquire returns a connection lease, creating a connection if the
	// pool is below capacity and waiting otherwise. It respects ctx
	// cancellation while waiting.
	Acquire(ctx context.Context) (Resource, error)

	// AcquireAllIdle returns leases on every idle connection. Used by the
	// health check loop to inspect connections without blocking callers.
	AcquireAllIdle() []Resource

	// Stats returns a snapshot of the pool counters.
	Stats() PoolStats

	// Close destroys all idle connections and marks the pool closed.
	// Connections still leased are destroyed on release.
	Close()
}

// Resource is a lease on one pooled connection.
type Resource interface {
	// Value returns the leased connection.
	Value() *Conn

	// Release returns the connection to the pool for reuse and refreshes
	// its idle timestamp.
	Release()

	// ReleaseUnused returns the connection without refreshing its idle
	// timestamp. Health checks use this so probing does not keep idle
	// connections alive forever.
	ReleaseUnused()

	// Destroy closes the connection and removes it from the pool.
	Destroy()

	// CreationTime reports when the underlying connection was dialed.
	CreationTime() time.Time

	// IdleDuration reports how long the connection has been idle.
	IdleDuration() time.Duration
}
