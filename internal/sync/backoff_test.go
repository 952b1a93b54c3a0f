package sync

import (
	"testing"
	"time"
)

func TestBackoffDelay_GrowsExponentially(t *testing.T) {
	base := 10 * time.Second
	ceiling := 15 * time.Minute

	// With 50–100% jitter the delay for attempt n lies in
	// [nominal/2, nominal), where nominal doubles per attempt.
	tests := []struct {
		attempt int
		nominal time.Duration
	}{
		{1, 10 * time.Second},
		{2, 20 * time.Second},
		{3, 40 * time.Second},
		{4, 80 * time.Second},
		{5, 160 * time.Second},
	}
	for _, tt := range tests {
		for i := 0; i < 50; i++ {
			d := backoffDelay(tt.attempt, base, ceiling)
			if d < tt.nominal/2 || d >= tt.nominal {
				t.Fatalf("attempt %d: delay %v outside [%v, %v)", tt.attempt, d, tt.nominal/2, tt.nominal)
			}
		}
	}
}

func TestBackoffDelay_RespectsCeiling(t *testing.T) {
	ceiling := 15 * time.Minute
	for attempt := 1; attempt <= 30; attempt++ {
		d := backoffDelay(attempt, 10*time.Second, ceiling)
		if d >= ceiling {
			t.Fatalf("attempt %d: delay %v exceeds ceiling %v", attempt, d, ceiling)
		}
	}
}

func TestBackoffDelay_ClampsLowAttempt(t *testing.T) {
	base := 10 * time.Second
	for _, attempt := range []int{0, -3} {
		d := backoffDelay(attempt, base, time.Minute)
		if d < base/2 || d >= base {
			t.Errorf("attempt %d: delay %v, want first-attempt range [%v, %v)", attempt, d, base/2, base)
		}
	}
}
