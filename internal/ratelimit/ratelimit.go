// Package ratelimit throttles outbound requests to each configured news
// source independently, so a slow or generous source never starves a
// stricter one and a strict one never gets hammered past its stated budget.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter hands out one token-bucket per source id, created lazily on first
// use and sized from the requests-per-minute figure the caller supplies.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*rate.Limiter
	fallback int
}

// New returns a Limiter that falls back to fallbackRPM requests per minute
// for any source whose own rate is not yet known.
func New(fallbackRPM int) *Limiter {
	if fallbackRPM <= 0 {
		fallbackRPM = 30
	}
	return &Limiter{
		buckets:  make(map[string]*rate.Limiter),
		fallback: fallbackRPM,
	}
}

// Wait blocks until sourceID is permitted to issue another request, or ctx
// is done. rpm registers the source's budget the first time it is seen;
// subsequent calls for the same sourceID reuse the existing bucket and
// ignore rpm.
func (l *Limiter) Wait(ctx context.Context, sourceID string, rpm int) error {
	return l.bucketFor(sourceID, rpm).Wait(ctx)
}

func (l *Limiter) bucketFor(sourceID string, rpm int) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets[sourceID]; ok {
		return b
	}
	if rpm <= 0 {
		rpm = l.fallback
	}
	perSecond := rate.Limit(float64(rpm) / 60.0)
	b := rate.NewLimiter(perSecond, 1)
	l.buckets[sourceID] = b
	return b
}
