package connectors

import (
	"context"
	"sync"
	"time"
)

// RateLimiter spaces provider API calls evenly. Callers reserve a slot and
// wait for it outside the lock.
type RateLimiter struct {
	mu       sync.Mutex
	next     time.Time
	interval time.Duration
}

// NewRateLimiter allows perSecond calls per second; perSecond <= 0 disables
// limiting.
func NewRateLimiter(perSecond int) *RateLimiter {
	if perSecond <= 0 {
		return &RateLimiter{}
	}
	return &RateLimiter{interval: time.Second / time.Duration(perSecond)}
}

func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil || r.interval == 0 {
		return ctx.Err()
	}

	r.mu.Lock()
	now := time.Now()
	slot := now
	if r.next.After(now) {
		slot = r.next
	}
	r.next = slot.Add(r.interval)
	r.mu.Unlock()

	delay := time.Until(slot)
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
