package worker

import (
	"testing"
	"time"
)

func TestBackoffWithJitter(t *testing.T) {
	base := time.Second
	max := 8 * time.Second

	b1 := backoffWithJitter(base, max, 1)
	if b1 < base/2 || b1 > max {
		t.Fatalf("backoff out of range: %s", b1)
	}

	b3 := backoffWithJitter(base, max, 3)
	if b3 < base || b3 > max {
		t.Fatalf("backoff out of range for attempt 3: %s", b3)
	}

	// Capped at max regardless of attempt count.
	b10 := backoffWithJitter(base, max, 10)
	if b10 > max {
		t.Fatalf("backoff exceeded max: %s", b10)
	}

	if b0 := backoffWithJitter(base, max, 0); b0 != base {
		t.Fatalf("expected base for attempt 0, got %s", b0)
	}
}

func TestBackoffWithJitterSubNanosecondBase(t *testing.T) {
	// A base so small the jitter window rounds to zero must not panic.
	for attempt := 1; attempt <= 3; attempt++ {
		if b := backoffWithJitter(1, 10, attempt); b <= 0 {
			t.Fatalf("non-positive backoff for attempt %d: %s", attempt, b)
		}
	}
}
