// Package ratelimit enforces the per-IP, per-operation limits of the
// AccessPolicyRouter.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/satring/gateway/pkg/cache"

	"golang.org/x/time/rate"
)

// Limit names one of the router's rate-limited operations.
type Limit struct {
	Name   string
	Max    int64
	Window time.Duration
}

var (
	Submit        = Limit{"submit", 20, time.Hour}
	Edit          = Limit{"edit", 20, time.Hour}
	Delete        = Limit{"delete", 10, time.Hour}
	Recover       = Limit{"recover", 20, time.Hour}
	Review        = Limit{"review", 20, time.Hour}
	SearchAPI     = Limit{"search-api", 2, time.Minute}
	PaymentStatus = Limit{"payment-status", 30, time.Minute}
)

// Limiter enforces fixed-window counters in Redis for the hour/minute-scale
// limits, and falls back to an in-process token bucket per IP for the
// sub-second search limit, where a Redis round trip per request would be
// wasteful.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*rate.Limiter
	searchRPS float64
	searchBurst int
}

// NewLimiter builds a Limiter. searchRPS/searchBurst parameterize the
// in-process search limiter (2/s per the router's table).
func NewLimiter() *Limiter {
	return &Limiter{
		buckets:     make(map[string]*rate.Limiter),
		searchRPS:   2,
		searchBurst: 2,
	}
}

// Allow enforces limit for sourceIP using a Redis fixed window, returning
// false once the window's quota is exhausted.
func (l *Limiter) Allow(ctx context.Context, limit Limit, sourceIP string) (bool, error) {
	key := fmt.Sprintf("ratelimit:%s:%s", limit.Name, sourceIP)

	count, err := cache.Incr(ctx, key)
	if err != nil {
		return false, fmt.Errorf("increment rate counter: %w", err)
	}
	if count == 1 {
		if err := cache.Expire(ctx, key, limit.Window); err != nil {
			return false, fmt.Errorf("set rate counter expiry: %w", err)
		}
	}

	return count <= limit.Max, nil
}

// AllowSearch enforces the sub-second search limit (2/s per IP) with an
// in-process token bucket, avoiding a Redis round trip on the hottest path.
func (l *Limiter) AllowSearch(sourceIP string) bool {
	l.mu.Lock()
	b, ok := l.buckets[sourceIP]
	if !ok {
		b = rate.NewLimiter(rate.Limit(l.searchRPS), l.searchBurst)
		l.buckets[sourceIP] = b
	}
	l.mu.Unlock()

	return b.Allow()
}
