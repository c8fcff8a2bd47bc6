// Package retry holds the backoff and circuit-breaker helpers used by the
// hotpath and the engine facade, grounded on the teacher's
// broker_bridge.go HTTP-client-with-timeout pattern generalized into named
// retry policies (spec.md §4.6 step 6, §7 transient_dependency).
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// VersionConflictBackoff returns the bounded 50ms -> 100ms -> 200ms,
// max-3-retries schedule the hotpath apply protocol uses on a snapshot
// optimistic-lock conflict (spec.md §4.6 step 6). The coldpath does not
// use it; it retries a conflict immediately, up to MaxReplayAttempts.
func VersionConflictBackoff(baseDelay time.Duration, maxRetries int) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = baseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	return backoff.WithMaxRetries(b, uint64(maxRetries))
}

// Transient runs op with exponential backoff and jitter for
// transient_dependency failures (spec.md §7), stopping early if ctx is
// done or maxElapsed is exceeded.
func Transient(ctx context.Context, maxElapsed time.Duration, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxElapsed
	return backoff.Retry(op, backoff.WithContext(b, ctx))
}
