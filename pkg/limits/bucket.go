package limits

import (
	"math"
	"sync"
	"time"
)

// TokenBucket is a token bucket rate limiter. Tokens refill continuously at
// a fixed rate up to the capacity; each admitted request consumes tokens.
// Fractional tokens are kept so slow rates do not stall.
type TokenBucket struct {
	capacity   float64
	refillRate float64 // tokens per second

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// NewTokenBucket creates a full bucket. now is the reference time for the
// first refill.
//
//	// 10 requests/sec average, burst up to 50
//	bucket := NewTokenBucket(50, 10, time.Now())
func NewTokenBucket(capacity int, refillRate float64, now time.Time) *TokenBucket {
	return &TokenBucket{
		capacity:   float64(capacity),
		refillRate: refillRate,
		tokens:     float64(capacity),
		lastRefill: now,
	}
}

// Take consumes n tokens if they are available at now. When they are not,
// nothing is consumed and the wait until they would be is returned.
func (tb *TokenBucket) Take(n int, now time.Time) (bool, time.Duration) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked(now)

	need := float64(n)
	if tb.tokens >= need {
		tb.tokens -= need
		return true, 0
	}
	if tb.refillRate <= 0 {
		return false, time.Duration(math.MaxInt64)
	}
	seconds := (need - tb.tokens) / tb.refillRate
	return false, time.Duration(math.Ceil(seconds * float64(time.Second)))
}

// Remaining returns the whole tokens available at now.
func (tb *TokenBucket) Remaining(now time.Time) int {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked(now)
	return int(tb.tokens)
}

// Full reports whether the bucket has refilled to capacity at now.
func (tb *TokenBucket) Full(now time.Time) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked(now)
	return tb.tokens >= tb.capacity
}

// Capacity returns the maximum number of tokens.
func (tb *TokenBucket) Capacity() int {
	return int(tb.capacity)
}

// refillLocked adds the tokens accrued since the last refill. Caller must
// hold the lock. Time going backwards adds nothing.
func (tb *TokenBucket) refillLocked(now time.Time) {
	elapsed := now.Sub(tb.lastRefill)
	if elapsed <= 0 {
		return
	}
	tb.tokens = math.Min(tb.capacity, tb.tokens+elapsed.Seconds()*tb.refillRate)
	tb.lastRefill = now
}
