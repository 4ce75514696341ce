package engine

import (
	"math/rand/v2"
	"time"
)

// backoffDelay computes the wait before retry attempt+1: exponential
// from base, capped, with +/-25% jitter to avoid thundering retries
// against a struggling collaborator.
func backoffDelay(base time.Duration, attempt int, max time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}

	delay := base << attempt
	if delay > max || delay <= 0 {
		delay = max
	}

	jitter := time.Duration((rand.Float64() - 0.5) * 0.5 * float64(delay))
	return delay + jitter
}
