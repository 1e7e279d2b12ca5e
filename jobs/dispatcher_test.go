package jobs

import (
	"testing"
	"time"
)

func TestBackoffForAttempt(t *testing.T) {
	initial := 5 * time.Second
	max := 10 * time.Minute
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
		{4, 40 * time.Second},
		{5, 80 * time.Second},
		{6, 160 * time.Second},
		{7, 320 * time.Second},
		{8, 10 * time.Minute},
		{20, 10 * time.Minute},
	}
	for _, tc := range cases {
		if got := BackoffForAttempt(tc.attempt, initial, max); got != tc.want {
			t.Fatalf("BackoffForAttempt(%d) = %s, want %s", tc.attempt, got, tc.want)
		}
	}
}

func TestBackoffForAttempt_InitialAboveCap(t *testing.T) {
	if got := BackoffForAttempt(1, time.Hour, 10*time.Minute); got != 10*time.Minute {
		t.Fatalf("got %s, want cap", got)
	}
}

func TestIntFromEnv(t *testing.T) {
	t.Setenv("REMOTE_PUSH_MAX_ATTEMPTS", "7")
	if got := intFromEnv("REMOTE_PUSH_MAX_ATTEMPTS", 10); got != 7 {
		t.Fatalf("got %d, want 7", got)
	}
	t.Setenv("REMOTE_PUSH_MAX_ATTEMPTS", "-1")
	if got := intFromEnv("REMOTE_PUSH_MAX_ATTEMPTS", 10); got != 10 {
		t.Fatalf("got %d, want fallback 10", got)
	}
	if got := intFromEnv("REMOTE_PUSH_UNSET_KEY", 3); got != 3 {
		t.Fatalf("got %d, want fallback 3", got)
	}
}
