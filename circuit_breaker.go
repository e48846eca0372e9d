package pharos

import (
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/pharosdir/pharos/wire"
)

// CircuitBreaker shields a server from requests while it is failing.
// *gobreaker.CircuitBreaker[wire.Result] satisfies it; tests substitute
// their own.
type CircuitBreaker interface {
	Execute(req func() (wire.Result, error)) (wire.Result, error)
	State() gobreaker.State
}

// NewCircuitBreakerConfig returns a function that creates circuit breakers for servers.
// This is a helper for common use cases.
func NewCircuitBreakerConfig(maxRequests uint32, interval, timeout time.Duration) func(string) CircuitBreaker {
	return func(serverAddr string) CircuitBreaker {
		settings := gobreaker.Settings{
			Name:        serverAddr,
			MaxRequests: maxRequests,
			Interval:    interval,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
		}
		return gobreaker.NewCircuitBreaker[wire.Result](settings)
	}
}
