package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_PacesRequestsToConfiguredRate(t *testing.T) {
	l := New(30)
	ctx := context.Background()

	// 120 rpm == one token every 500ms, burst of 1, so the third call must
	// wait for the second token to refill.
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Wait(ctx, "s1", 120); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	elapsed := time.Since(start)
	if elapsed < time.Second {
		t.Fatalf("expected pacing to enforce at least 1s for 3 calls at 120rpm, took %s", elapsed)
	}
}

func TestLimiter_GivesEachSourceIndependentBucket(t *testing.T) {
	l := New(30)
	ctx := context.Background()

	// A slow source (60rpm) should not throttle a fast one (6000rpm)
	// sharing the same Limiter.
	if err := l.Wait(ctx, "slow", 60); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := l.Wait(ctx, "fast", 6000); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Fatalf("expected the fast source's bucket to be unaffected by the slow one, took %s", elapsed)
	}
}

func TestLimiter_ReusesBucketIgnoringLaterRPMArgument(t *testing.T) {
	l := New(30)
	ctx := context.Background()

	if err := l.Wait(ctx, "s1", 6000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Second call passes a much stricter rpm for the same source id; since
	// the bucket already exists it must be ignored, not re-applied.
	start := time.Now()
	if err := l.Wait(ctx, "s1", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Fatalf("expected existing bucket's rate to stick, took %s", elapsed)
	}
}

func TestLimiter_WaitRespectsContextCancellation(t *testing.T) {
	l := New(30)
	ctx, cancel := context.WithCancel(context.Background())

	if err := l.Wait(ctx, "s1", 1); err != nil {
		t.Fatalf("unexpected error priming the bucket: %v", err)
	}
	cancel()
	if err := l.Wait(ctx, "s1", 1); err == nil {
		t.Fatalf("expected Wait to return an error once ctx is cancelled")
	}
}
