// Package limits throttles configuration API traffic per organization.
//
// # Overview
//
// Every organization gets its own token bucket. Buckets start full, refill
// at a steady rate and allow bursts up to their capacity. A request costs
// one token; a batch evaluation costs one token per query, capped at the
// bucket capacity so a maximal batch is still admissible from a full bucket.
//
// # Usage
//
//	limiter := limits.NewTenantLimiter(&cfg.Server.RateLimit)
//
//	ok, retryAfter := limiter.Allow("org-1", len(queries))
//	if !ok {
//	    w.Header().Set("Retry-After", ...)
//	}
//
// # Memory
//
// At most MaxTenants buckets are tracked. When a new organization would
// exceed that, buckets that have refilled completely are dropped first (a
// full bucket carries no state), then the least recently used one.
//
// # Thread Safety
//
// TokenBucket and TenantLimiter are safe for concurrent use.
package limits
