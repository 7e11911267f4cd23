package limits

import (
	"sync"
	"time"

	"hera-erp/configrules/pkg/config"
)

// Option configures a TenantLimiter.
type Option func(*TenantLimiter)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *TenantLimiter) {
		if now != nil {
			l.now = now
		}
	}
}

type tenantBucket struct {
	bucket   *TokenBucket
	lastSeen time.Time
}

// TenantLimiter keeps one token bucket per organization.
type TenantLimiter struct {
	rate       float64
	burst      int
	maxTenants int
	now        func() time.Time

	mu      sync.Mutex
	buckets map[string]*tenantBucket
}

// NewTenantLimiter creates a limiter from cfg. Zero fields fall back to the
// configuration defaults.
func NewTenantLimiter(cfg *config.RateLimitConfig, opts ...Option) *TenantLimiter {
	l := &TenantLimiter{
		rate:       cfg.RequestsPerSecond,
		burst:      cfg.Burst,
		maxTenants: cfg.MaxTenants,
		now:        time.Now,
		buckets:    make(map[string]*tenantBucket),
	}
	if l.rate <= 0 {
		l.rate = config.DefaultRateLimitRPS
	}
	if l.burst <= 0 {
		l.burst = config.DefaultRateLimitBurst
	}
	if l.maxTenants <= 0 {
		l.maxTenants = config.DefaultRateLimitTenants
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow charges cost tokens to tenantID. Costs below one count as one and
// costs above the burst count as the burst. When the request is refused
// the returned duration says how long until it would be admitted.
func (l *TenantLimiter) Allow(tenantID string, cost int) (bool, time.Duration) {
	if cost < 1 {
		cost = 1
	}
	if cost > l.burst {
		cost = l.burst
	}

	now := l.now()
	l.mu.Lock()
	tb, ok := l.buckets[tenantID]
	if !ok {
		if len(l.buckets) >= l.maxTenants {
			l.evictLocked(now)
		}
		tb = &tenantBucket{bucket: NewTokenBucket(l.burst, l.rate, now)}
		l.buckets[tenantID] = tb
	}
	tb.lastSeen = now
	l.mu.Unlock()

	return tb.bucket.Take(cost, now)
}

// Tracked returns the number of organizations with a bucket.
func (l *TenantLimiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// evictLocked drops every full bucket, or the least recently used one when
// none is full.
func (l *TenantLimiter) evictLocked(now time.Time) {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, tb := range l.buckets {
		if tb.bucket.Full(now) {
			delete(l.buckets, id)
			continue
		}
		if oldestID == "" || tb.lastSeen.Before(oldest) {
			oldestID, oldest = id, tb.lastSeen
		}
	}
	if len(l.buckets) >= l.maxTenants && oldestID != "" {
		delete(l.buckets, oldestID)
	}
}
