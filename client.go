package pharos

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/pharosdir/pharos/wire"
)

// DefaultIdentity is announced during the handshake when the
// configuration does not set one.
const DefaultIdentity = "pharos-go/1.0"

const (
	defaultMaxPoolSize     = 10
	defaultDialTimeout     = 5 * time.Second
	healthCheckPingTimeout = 2 * time.Second
)

// errBreakerTimeout marks a synthesized timeout result as a failure for
// circuit breaker accounting without turning it into a caller-visible
// error.
var errBreakerTimeout = errors.New("operation timed out")

// Config holds configuration for the directory client connection pools.
type Config struct {
	// Identity is the client name and version announced to every server
	// during the handshake. Defaults to DefaultIdentity.
	Identity string

	// Signer answers authentication challenges for mutating commands.
	// Without one, a mutating command surfaces the server's challenge
	// result untouched.
	Signer ChallengeSigner

	// MaxSize is the maximum number of connections per server pool.
	// Defaults to 10.
	MaxSize int32

	// MaxConnLifetime is the maximum duration a connection can be reused.
	// Zero means no limit.
	MaxConnLifetime time.Duration

	// MaxConnIdleTime is the maximum duration a connection can be idle before being closed.
	// Zero means no limit.
	MaxConnIdleTime time.Duration

	// HealthCheckInterval is how often to check idle connections for health.
	// Zero disables health checks.
	HealthCheckInterval time.Duration

	// Dialer is the net.Dialer used to create new connections.
	// If nil, a dialer with a 5s timeout is used.
	Dialer *net.Dialer

	// Pool is the connection pool factory function.
	// If nil, uses the puddle-based pool.
	Pool PoolFactory

	// SelectServer routes a command key to a position in the server list.
	// If nil, uses DefaultSelectServer (Jump Hash).
	SelectServer SelectServerFunc

	// NewCircuitBreaker creates a circuit breaker for a server.
	// Called once per server address when the pool is created.
	// If nil, no circuit breaker is used.
	NewCircuitBreaker func(serverAddr string) CircuitBreaker

	// OnMalformedLine receives every response line skipped as unparsable,
	// with the server that sent it. Skips are counted in
	// ClientStats.MalformedLines either way.
	OnMalformedLine func(serverAddr, raw string)

	// for testing purposes only
	constructor Constructor
}

// serverPool wraps a pool with its server address.
type serverPool struct {
	addr           string
	pool           Pool
	circuitBreaker CircuitBreaker // nil if not configured
}

// poolConfig holds the pool configuration extracted from Config.
type poolConfig struct {
	identity            string
	maxSize             int32
	maxConnLifetime     time.Duration
	maxConnIdleTime     time.Duration
	healthCheckInterval time.Duration
	dialer              *net.Dialer
	poolFactory         PoolFactory
	newCircuitBreaker   func(serverAddr string) CircuitBreaker // nil if not configured
	onMalformed         func(serverAddr, raw string)           // nil if not configured
	constructor         Constructor                            // for testing
}

// Client is a directory client that pools connections per server and
// routes commands across servers by key.
type Client struct {
	servers      Servers
	selectServer SelectServerFunc
	signer       ChallengeSigner

	// Multi-pool management
	mu    sync.RWMutex
	pools map[string]*serverPool

	// Pool configuration (same for all servers)
	poolConfig poolConfig

	// Health check management
	stopHealthCheck chan struct{}

	stats clientStatsCollector
}

var _ Directory = (*Client)(nil)

// NewClient creates a new directory client with the given servers and configuration.
// For a single server, use: NewClient(ServersFromAddr("host:port"), config)
func NewClient(servers Servers, config Config) (*Client, error) {
	selectServer := config.SelectServer
	if selectServer == nil {
		selectServer = DefaultSelectServer
	}

	// Validate servers
	if servers == nil || len(servers.List()) == 0 {
		return nil, ErrNoServers
	}

	// Set up pool configuration
	identity := config.Identity
	if identity == "" {
		identity = DefaultIdentity
	}

	dialer := config.Dialer
	if dialer == nil {
		dialer = &net.Dialer{Timeout: defaultDialTimeout}
	}

	poolFactory := config.Pool
	if poolFactory == nil {
		poolFactory = NewPuddlePool
	}

	maxSize := config.MaxSize
	if maxSize <= 0 {
		maxSize = defaultMaxPoolSize
	}

	poolCfg := poolConfig{
		identity:            identity,
		maxSize:             maxSize,
		maxConnLifetime:     config.MaxConnLifetime,
		maxConnIdleTime:     config.MaxConnIdleTime,
		healthCheckInterval: config.HealthCheckInterval,
		dialer:              dialer,
		poolFactory:         poolFactory,
		newCircuitBreaker:   config.NewCircuitBreaker,
		onMalformed:         config.OnMalformedLine,
		constructor:         config.constructor,
	}

	client := &Client{
		servers:         servers,
		selectServer:    selectServer,
		signer:          config.Signer,
		pools:           make(map[string]*serverPool),
		poolConfig:      poolCfg,
		stopHealthCheck: make(chan struct{}),
	}

	// Start health check goroutine if enabled
	if config.HealthCheckInterval > 0 {
		go client.healthCheckLoop()
	}

	return client, nil
}

// Close closes the client and destroys all connections in all pools.
func (c *Client) Close() {
	// Stop health check goroutine if running
	if c.poolConfig.healthCheckInterval > 0 {
		close(c.stopHealthCheck)
	}

	// Close all pools
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, sp := range c.pools {
		sp.pool.Close()
	}
}

// Query looks up directory entries with free-form query text. The text is
// normalized on the wire: a missing verb gets the default query prefix.
func (c *Client) Query(ctx context.Context, text string) (wire.Result, error) {
	result, err := c.Execute(ctx, wire.Raw(text))
	c.stats.recordQuery(err == nil && result.IsMatches())
	return result, err
}

// Add creates a directory entry, authenticating if the server demands it.
func (c *Client) Add(ctx context.Context, fields ...wire.Field) (wire.Result, error) {
	result, err := c.ExecuteAuthenticated(ctx, wire.Add(fields...))
	c.stats.recordAdd()
	return result, err
}

// Change updates the entries matched by selectors, authenticating if the
// server demands it. Set force to confirm a change touching multiple
// entries.
func (c *Client) Change(ctx context.Context, selectors []wire.Selector, changes []wire.Field, force bool) (wire.Result, error) {
	cmd := wire.Change(selectors, changes)
	if force {
		cmd.Force()
	}
	result, err := c.ExecuteAuthenticated(ctx, cmd)
	c.stats.recordChange()
	return result, err
}

// Delete removes the entries matched by selectors, authenticating if the
// server demands it.
func (c *Client) Delete(ctx context.Context, selectors ...wire.Selector) (wire.Result, error) {
	result, err := c.ExecuteAuthenticated(ctx, wire.Delete(selectors...))
	c.stats.recordDelete()
	return result, err
}

// Execute runs one command on the server its routing key selects.
func (c *Client) Execute(ctx context.Context, cmd *wire.Command) (wire.Result, error) {
	sp, err := c.getPoolForKey(cmd.Key())
	if err != nil {
		c.stats.recordError()
		return wire.Result{}, err
	}
	return c.execRequest(ctx, sp, func(conn *Conn) (wire.Result, error) {
		return conn.Execute(ctx, cmd)
	})
}

// ExecuteAuthenticated runs one command on the server its routing key
// selects, answering an authentication challenge with the configured
// signer and retrying the command once. The whole exchange holds a single
// connection: the server ties authentication to the conversation.
func (c *Client) ExecuteAuthenticated(ctx context.Context, cmd *wire.Command) (wire.Result, error) {
	sp, err := c.getPoolForKey(cmd.Key())
	if err != nil {
		c.stats.recordError()
		return wire.Result{}, err
	}
	return c.execRequest(ctx, sp, func(conn *Conn) (wire.Result, error) {
		wasAuthenticated := conn.Authenticated()
		result, err := conn.ExecuteAuthenticated(ctx, cmd, c.signer)
		if !wasAuthenticated && conn.Authenticated() {
			c.stats.recordAuthRetry()
		}
		return result, err
	})
}

// Stats returns a snapshot of client operation statistics.
func (c *Client) Stats() ClientStats {
	return c.stats.snapshot()
}

// ServerPoolStats describes the state of one server's pool.
type ServerPoolStats struct {
	Addr                string
	PoolStats           PoolStats
	CircuitBreakerState string // empty when no breaker is configured
}

// AllPoolStats returns a snapshot of every server pool, sorted by
// address. Servers never routed to have no pool yet and do not appear.
func (c *Client) AllPoolStats() []ServerPoolStats {
	c.mu.RLock()
	stats := make([]ServerPoolStats, 0, len(c.pools))
	for _, sp := range c.pools {
		s := ServerPoolStats{
			Addr:      sp.addr,
			PoolStats: sp.pool.Stats(),
		}
		if sp.circuitBreaker != nil {
			s.CircuitBreakerState = sp.circuitBreaker.State().String()
		}
		stats = append(stats, s)
	}
	c.mu.RUnlock()

	sort.Slice(stats, func(i, j int) bool { return stats[i].Addr < stats[j].Addr })
	return stats
}

// execRequest executes one operation with proper connection management.
// If a circuit breaker is configured for the server pool, the operation is
// wrapped with it.
func (c *Client) execRequest(ctx context.Context, sp *serverPool, run func(conn *Conn) (wire.Result, error)) (wire.Result, error) {
	// If circuit breaker is configured, wrap the request
	if sp.circuitBreaker != nil {
		result, err := sp.circuitBreaker.Execute(func() (wire.Result, error) {
			result, err := c.execRequestDirect(ctx, sp, run)
			if err != nil {
				return result, err
			}
			// A server that keeps timing out deserves an open breaker.
			if result.Timeout() {
				return result, errBreakerTimeout
			}
			return result, nil
		})
		if errors.Is(err, errBreakerTimeout) {
			return result, nil
		}
		if err != nil {
			c.stats.recordError()
			return wire.Result{}, err
		}
		return result, nil
	}

	// No circuit breaker, execute directly
	result, err := c.execRequestDirect(ctx, sp, run)
	if err != nil {
		c.stats.recordError()
	}
	return result, err
}

// execRequestDirect performs the actual execution without circuit breaker:
// acquire a connection, run the operation, return the connection to its
// pool or destroy it when it can no longer be trusted.
func (c *Client) execRequestDirect(ctx context.Context, sp *serverPool, run func(conn *Conn) (wire.Result, error)) (wire.Result, error) {
	resource, err := sp.pool.Acquire(ctx)
	if err != nil {
		return wire.Result{}, fmt.Errorf("acquiring connection to %s: %w", sp.addr, err)
	}

	conn := resource.Value()
	result, err := run(conn)

	// A torn-down connection (timeout teardown marks it closed without an
	// error) must never go back into rotation.
	if conn.IsClosed() || (err != nil && wire.ShouldCloseConnection(err)) {
		resource.Destroy()
	} else {
		resource.Release()
	}
	return result, err
}

// getPoolForKey returns the pool for the server that should handle this key.
// Creates the pool lazily if it doesn't exist.
func (c *Client) getPoolForKey(key string) (*serverPool, error) {
	addrs := c.servers.List()
	if len(addrs) == 0 {
		return nil, ErrNoServers
	}

	idx := c.selectServer(key, len(addrs))
	if idx < 0 || idx >= len(addrs) {
		// Safety check
		idx = 0
	}
	return c.getOrCreatePool(addrs[idx])
}

// getOrCreatePool gets or creates a pool for the given server address.
func (c *Client) getOrCreatePool(addr string) (*serverPool, error) {
	// Fast path: read lock
	c.mu.RLock()
	sp, exists := c.pools[addr]
	c.mu.RUnlock()
	if exists {
		return sp, nil
	}

	// Slow path: write lock and create
	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock
	if sp, exists := c.pools[addr]; exists {
		return sp, nil
	}

	// Create new pool
	pool, cb, err := c.createPool(addr)
	if err != nil {
		return nil, err
	}

	sp = &serverPool{
		addr:           addr,
		pool:           pool,
		circuitBreaker: cb,
	}
	c.pools[addr] = sp
	return sp, nil
}

// createPool creates a new connection pool for a server.
func (c *Client) createPool(addr string) (Pool, CircuitBreaker, error) {
	constructor := c.poolConfig.constructor
	if constructor == nil {
		constructor = func(ctx context.Context) (*Conn, error) {
			conn, err := DialWithDialer(ctx, c.poolConfig.dialer, addr, c.poolConfig.identity)
			if err != nil {
				return nil, err
			}
			hook := c.poolConfig.onMalformed
			conn.OnMalformed = func(raw string) {
				c.stats.recordMalformed()
				if hook != nil {
					hook(addr, raw)
				}
			}
			return conn, nil
		}
	}

	pool, err := c.poolConfig.poolFactory(constructor, c.poolConfig.maxSize)
	if err != nil {
		return nil, nil, err
	}

	var cb CircuitBreaker
	if c.poolConfig.newCircuitBreaker != nil {
		cb = c.poolConfig.newCircuitBreaker(addr)
	}

	return pool, cb, nil
}

// healthCheckLoop periodically checks idle connections for health and lifecycle limits.
func (c *Client) healthCheckLoop() {
	ticker := time.NewTicker(c.poolConfig.healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopHealthCheck:
			return
		case <-ticker.C:
			c.checkAllPools()
		}
	}
}

// checkAllPools runs health checks on all existing pools
func (c *Client) checkAllPools() {
	c.mu.RLock()
	pools := make([]*serverPool, 0, len(c.pools))
	for _, sp := range c.pools {
		pools = append(pools, sp)
	}
	c.mu.RUnlock()

	for _, sp := range pools {
		c.checkPoolConnections(sp.pool)
	}
}

// checkPoolConnections checks all idle connections in a pool and destroys those that are stale or unhealthy.
func (c *Client) checkPoolConnections(pool Pool) {
	now := time.Now()

	for _, res := range pool.AcquireAllIdle() {
		// Check max connection lifetime
		if c.poolConfig.maxConnLifetime > 0 && now.Sub(res.CreationTime()) > c.poolConfig.maxConnLifetime {
			res.Destroy()
			continue
		}

		// Check max idle time
		if c.poolConfig.maxConnIdleTime > 0 && res.IdleDuration() > c.poolConfig.maxConnIdleTime {
			res.Destroy()
			continue
		}

		// Probe with a status command; any complete reply counts
		ctx, cancel := context.WithTimeout(context.Background(), healthCheckPingTimeout)
		err := res.Value().Ping(ctx)
		cancel()
		if err != nil {
			res.Destroy()
			continue
		}

		res.ReleaseUnused()
	}
}
