package infra

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// --- Token bucket ---

// RateLimiter provides simple token-bucket rate limiting.
type RateLimiter struct {
	mu         sync.Mutex
	tokens     int
	maxTokens  int
	refillRate time.Duration
	lastRefill time.Time
}

// NewRateLimiter creates a rate limiter that allows maxTokens requests
// per refillRate duration.
func NewRateLimiter(maxTokens int, refillRate time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Wait blocks until a token is available or context is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		rl.mu.Lock()
		rl.refill()
		if rl.tokens > 0 {
			rl.tokens--
			rl.mu.Unlock()
			return nil
		}
		rl.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// refill adds tokens based on elapsed time. Must be called with mu held.
func (rl *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(rl.lastRefill)
	if elapsed >= rl.refillRate {
		periods := int(elapsed / rl.refillRate)
		rl.tokens += periods * rl.maxTokens
		if rl.tokens > rl.maxTokens {
			rl.tokens = rl.maxTokens
		}
		rl.lastRefill = rl.lastRefill.Add(time.Duration(periods) * rl.refillRate)
	}
}

// --- Sliding window with bounded concurrency ---

// WindowLimiter admits at most limit calls in any trailing window and at
// most concurrency calls in flight. One instance must be shared by every
// caller of the limited service or the limit is not enforced.
type WindowLimiter struct {
	mu     sync.Mutex
	window time.Duration
	limit  int
	stamps []time.Time
	sem    *semaphore.Weighted
	now    func() time.Time
}

// NewWindowLimiter creates a sliding-window limiter.
func NewWindowLimiter(limit int, window time.Duration, concurrency int) *WindowLimiter {
	if limit < 1 {
		limit = 1
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &WindowLimiter{
		window: window,
		limit:  limit,
		sem:    semaphore.NewWeighted(int64(concurrency)),
		now:    time.Now,
	}
}

// Acquire blocks until a slot is available in both the window and the
// concurrency bound. The returned release func must be called when the
// call completes.
func (w *WindowLimiter) Acquire(ctx context.Context) (release func(), err error) {
	if err := w.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	for {
		wait := w.reserve()
		if wait <= 0 {
			return func() { w.sem.Release(1) }, nil
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			w.sem.Release(1)
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

// reserve records a call if the window has room, otherwise returns how long
// until the oldest call leaves the window.
func (w *WindowLimiter) reserve() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}
	w.stamps = w.stamps[i:]

	if len(w.stamps) < w.limit {
		w.stamps = append(w.stamps, now)
		return 0
	}
	return w.stamps[0].Add(w.window).Sub(now)
}

// InWindow returns the number of calls recorded in the trailing window.
func (w *WindowLimiter) InWindow() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	cutoff := w.now().Add(-w.window)
	n := 0
	for _, s := range w.stamps {
		if s.After(cutoff) {
			n++
		}
	}
	return n
}
