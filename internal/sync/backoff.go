package sync

import (
	"math/rand"
	"time"
)

// backoffDelay computes the wait before the next attempt of an event that has
// failed attempt times, applying exponential growth with 50–100 % jitter.
func backoffDelay(attempt int, base, ceiling time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= ceiling {
			break
		}
	}
	if delay > ceiling {
		delay = ceiling
	}
	// Jitter: uniform in [delay/2, delay).
	jitter := time.Duration(rand.Int63n(int64(delay) / 2)) //nolint:gosec // jitter does not need crypto/rand
	return delay/2 + jitter
}
