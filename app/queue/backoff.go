package queue

import (
	"math/rand"
	"time"
)

const (
	backoffBase = 5 * time.Minute
	backoffCap  = 2 * time.Hour
)

// Backoff returns how long to wait before retrying after the given attempt.
// The delay doubles per attempt from backoffBase up to backoffCap, plus up to
// 10% uniform jitter so retries from a burst of failures spread out.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := backoffCap
	if shift := attempt - 1; shift < 6 {
		delay = backoffBase << uint(shift)
		if delay > backoffCap {
			delay = backoffCap
		}
	}

	jitter := time.Duration(rand.Int63n(int64(delay/10) + 1))
	return delay + jitter
}
