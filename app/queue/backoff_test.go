package queue

import (
	"testing"
	"time"
)

// expectedBase mirrors the doubling schedule before jitter.
func expectedBase(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := backoffBase
	for i := 1; i < attempt; i++ {
		base *= 2
		if base >= backoffCap {
			return backoffCap
		}
	}
	return base
}

func TestBackoffBounds(t *testing.T) {
	t.Parallel()

	for attempt := 1; attempt <= 20; attempt++ {
		base := expectedBase(attempt)
		maxDelay := base + base/10

		for i := 0; i < 50; i++ {
			delay := Backoff(attempt)
			if delay < base {
				t.Fatalf("attempt %d: delay %v below base %v", attempt, delay, base)
			}
			if delay > maxDelay {
				t.Fatalf("attempt %d: delay %v above base+10%% %v", attempt, delay, maxDelay)
			}
		}
	}
}

func TestBackoffMonotonicBeforeJitter(t *testing.T) {
	t.Parallel()

	prev := time.Duration(0)
	for attempt := 1; attempt <= 20; attempt++ {
		base := expectedBase(attempt)
		if base < prev {
			t.Fatalf("base delay decreased at attempt %d: %v < %v", attempt, base, prev)
		}
		prev = base
	}
}

func TestBackoffNeverExceedsCapPlusJitter(t *testing.T) {
	t.Parallel()

	limit := backoffCap + backoffCap/10
	for _, attempt := range []int{1, 6, 7, 10, 100, 0, -3} {
		for i := 0; i < 50; i++ {
			if delay := Backoff(attempt); delay > limit {
				t.Fatalf("attempt %d: delay %v above cap+10%% %v", attempt, delay, limit)
			}
		}
	}
}

func TestBackoffFirstAttemptNearBase(t *testing.T) {
	t.Parallel()

	delay := Backoff(1)
	if delay < 5*time.Minute || delay > 5*time.Minute+30*time.Second {
		t.Fatalf("first retry delay %v outside [5m, 5m30s]", delay)
	}
}
