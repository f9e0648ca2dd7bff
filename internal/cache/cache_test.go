package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryCache_GetReturnsErrMissForAbsentKey(t *testing.T) {
	c := NewMemoryCache()
	var dst string
	if err := c.Get(context.Background(), "missing", &dst); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss, got %v", err)
	}
}

func TestMemoryCache_SetThenGetRoundTrips(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	if err := c.Set(ctx, "k1", "hello", time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got string
	if err := c.Get(ctx, "k1", &got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hello" {
		t.Fatalf("expected round-tripped value %q, got %q", "hello", got)
	}
}

func TestMemoryCache_GetExpiresAfterTTL(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	if err := c.Set(ctx, "k1", "hello", time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	var got string
	if err := c.Get(ctx, "k1", &got); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected expired entry to miss, got %v", err)
	}
}

func TestMemoryCache_SeenRecentlyReflectsMarkSeenAndTTL(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	seen, err := c.SeenRecently(ctx, "article:a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen {
		t.Fatalf("expected an unmarked key to not be seen")
	}

	if err := c.MarkSeen(ctx, "article:a1", time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seen, err = c.SeenRecently(ctx, "article:a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !seen {
		t.Fatalf("expected the marked key to be seen")
	}
}

func TestMemoryCache_SeenRecentlyExpiresAfterTTL(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	if err := c.MarkSeen(ctx, "article:a1", time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	seen, err := c.SeenRecently(ctx, "article:a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen {
		t.Fatalf("expected the mark to have expired")
	}
}
