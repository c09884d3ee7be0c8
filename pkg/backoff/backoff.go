package backoff

import (
	"math/rand"
	"time"
)

// Delay returns the pause before retry number attempt (1-based): exponential
// growth from base, clamped at max, with half-width jitter so concurrent
// retries spread out instead of thundering in lockstep. The result always
// falls between half the clamped delay and the clamped delay.
func Delay(base, max time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base << (attempt - 1)
	if delay > max || delay <= 0 {
		delay = max
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/2 + 1))
	return delay/2 + jitter
}
