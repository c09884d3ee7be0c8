package backoff

import (
	"testing"
	"time"
)

func TestDelayGrowsAndStaysWithinBounds(t *testing.T) {
	base := 100 * time.Millisecond
	max := time.Second

	for attempt := 1; attempt <= 6; attempt++ {
		expected := base << (attempt - 1)
		if expected > max {
			expected = max
		}
		for i := 0; i < 50; i++ {
			d := Delay(base, max, attempt)
			if d < expected/2 || d > expected {
				t.Fatalf("attempt %d: delay %v outside [%v, %v]", attempt, d, expected/2, expected)
			}
		}
	}
}

func TestDelayClampsOverflowToMax(t *testing.T) {
	base := 100 * time.Millisecond
	max := time.Second

	// A shift this large overflows the duration; the clamp must still hold.
	d := Delay(base, max, 70)
	if d < max/2 || d > max {
		t.Fatalf("overflowed delay %v outside [%v, %v]", d, max/2, max)
	}
}

func TestDelayTreatsBadAttemptAsFirst(t *testing.T) {
	base := 100 * time.Millisecond
	max := time.Second

	d := Delay(base, max, 0)
	if d < base/2 || d > base {
		t.Fatalf("delay %v outside first-attempt bounds [%v, %v]", d, base/2, base)
	}
}
