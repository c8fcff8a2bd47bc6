package retry

import (
	"errors"
	"sync"
	"time"

	"github.com/chidi150c/posengine/internal/metrics"
)

// ErrCircuitOpen is returned by CircuitBreaker.Call while the breaker is
// open, without running the guarded operation. Callers treat it like any
// other failure of that call; neither the breaker nor its callers buffer
// or retry the rejected operation.
var ErrCircuitOpen = errors.New("retry: circuit breaker open")

// CircuitBreaker is a minimal three-state (closed/open/half-open) breaker
// guarding one named dependency (a DB pool, a broker connection). No
// third-party circuit-breaker library appears anywhere in the example
// corpus, so this is hand-rolled on a mutex and a timer, the same way the
// teacher builds its own small concurrency primitives rather than
// importing one.
type CircuitBreaker struct {
	name             string
	failureThreshold int
	openDuration     time.Duration

	mu       sync.Mutex
	failures int
	openedAt time.Time
	state    circuitState
}

type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
	circuitHalfOpen
)

// NewCircuitBreaker builds a breaker for dependency name that opens after
// failureThreshold consecutive failures and stays open for openDuration.
func NewCircuitBreaker(name string, failureThreshold int, openDuration time.Duration) *CircuitBreaker {
	return &CircuitBreaker{name: name, failureThreshold: failureThreshold, openDuration: openDuration}
}

// Call runs op, tracking failures/successes to drive the breaker's state.
// Returns ErrCircuitOpen without invoking op if the breaker is open.
func (c *CircuitBreaker) Call(op func() error) error {
	if !c.allow() {
		return ErrCircuitOpen
	}
	err := op()
	c.record(err)
	return err
}

func (c *CircuitBreaker) allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case circuitOpen:
		if time.Since(c.openedAt) >= c.openDuration {
			c.state = circuitHalfOpen
			metrics.CircuitOpen.WithLabelValues(c.name).Set(0)
			return true
		}
		return false
	default:
		return true
	}
}

func (c *CircuitBreaker) record(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		c.failures = 0
		c.state = circuitClosed
		return
	}
	c.failures++
	if c.failures >= c.failureThreshold {
		c.state = circuitOpen
		c.openedAt = time.Now()
		metrics.CircuitOpen.WithLabelValues(c.name).Set(1)
	}
}
