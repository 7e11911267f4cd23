package store

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"hera-erp/configrules/pkg/config"
	"hera-erp/configrules/pkg/engine"
	"hera-erp/configrules/pkg/rules"
	"hera-erp/configrules/pkg/telemetry/tracing"
)

// CacheNameMemory labels the in-process cache in logs and metrics.
const CacheNameMemory = "memory"

// Pinger is implemented by stores that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// defaultLoadTimeout bounds a shared backing fetch, which outlives the
// caller that started it.
const defaultLoadTimeout = config.DefaultStoreTimeout

type cacheEntry struct {
	rules   []rules.ConfigurationRule
	expires time.Time
}

// allKeys marks the cache entry holding a tenant's full rule list.
const allKeys = "\x00all"

// CachingStore caches another store's results in memory for a fixed TTL.
// Concurrent misses for the same (tenant, key) share one backing fetch.
// Errors are never cached. Purge and InvalidateTenant start a new generation;
// fetches begun in an older one are returned to their callers but not cached.
type CachingStore struct {
	next        engine.RuleStore
	ttl         time.Duration
	maxEntries  int
	loadTimeout time.Duration
	logger      *slog.Logger
	recorder    Recorder
	now         func() time.Time

	mu         sync.RWMutex
	entries    map[tenantKey]cacheEntry
	generation uint64
	group      singleflight.Group
}

// CacheOption configures a CachingStore.
type CacheOption func(*CachingStore)

// WithCacheRecorder sets the sink for cache measurements.
func WithCacheRecorder(r Recorder) CacheOption {
	return func(s *CachingStore) {
		s.recorder = orNop(r)
	}
}

// WithLoadTimeout bounds each shared backing fetch. Non-positive values keep
// the default.
func WithLoadTimeout(d time.Duration) CacheOption {
	return func(s *CachingStore) {
		if d > 0 {
			s.loadTimeout = d
		}
	}
}

// NewCachingStore wraps next with a TTL cache.
func NewCachingStore(next engine.RuleStore, cfg *config.CacheConfig, logger *slog.Logger, opts ...CacheOption) *CachingStore {
	if logger == nil {
		logger = slog.Default()
	}
	ttl := config.DefaultCacheTTL
	maxEntries := config.DefaultCacheMaxEntries
	if cfg != nil {
		if cfg.TTL > 0 {
			ttl = cfg.TTL
		}
		if cfg.MaxEntries > 0 {
			maxEntries = cfg.MaxEntries
		}
	}

	s := &CachingStore{
		next:        next,
		ttl:         ttl,
		maxEntries:  maxEntries,
		loadTimeout: defaultLoadTimeout,
		logger:      logger.With("component", "store.cache"),
		recorder:    nopRecorder{},
		now:         time.Now,
		entries:     make(map[tenantKey]cacheEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchActiveRules returns cached rules for the pair, loading them from the
// backing store on a miss.
func (s *CachingStore) FetchActiveRules(ctx context.Context, tenantID, configKey string) ([]rules.ConfigurationRule, error) {
	return s.get(ctx, tenantKey{tenant: tenantID, key: configKey}, func(ctx context.Context) ([]rules.ConfigurationRule, error) {
		return s.next.FetchActiveRules(ctx, tenantID, configKey)
	})
}

// ListActiveRules returns the cached rule list of a tenant, loading it from
// the backing store on a miss.
func (s *CachingStore) ListActiveRules(ctx context.Context, tenantID string) ([]rules.ConfigurationRule, error) {
	return s.get(ctx, tenantKey{tenant: tenantID, key: allKeys}, func(ctx context.Context) ([]rules.ConfigurationRule, error) {
		return s.next.ListActiveRules(ctx, tenantID)
	})
}

func (s *CachingStore) get(ctx context.Context, k tenantKey, load func(context.Context) ([]rules.ConfigurationRule, error)) ([]rules.ConfigurationRule, error) {
	span := trace.SpanFromContext(ctx)

	if list, ok := s.lookup(k); ok {
		s.recorder.RecordCacheHit(CacheNameMemory)
		tracing.SetCacheAttributes(span, true, CacheNameMemory)
		return list, nil
	}
	s.recorder.RecordCacheMiss(CacheNameMemory)
	tracing.SetCacheAttributes(span, false, CacheNameMemory)

	// The shared fetch runs detached from any one caller. Each caller stops
	// waiting on its own context below.
	gen := s.currentGeneration()
	loadCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(strconv.FormatUint(gen, 10)+"\x00"+k.tenant+"\x00"+k.key, func() (any, error) {
		ctx, cancel := context.WithTimeout(loadCtx, s.loadTimeout)
		defer cancel()

		list, err := load(ctx)
		if err != nil {
			return nil, err
		}
		s.store(k, list, gen)
		return list, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return cloneRules(res.Val.([]rules.ConfigurationRule)), nil
	}
}

func (s *CachingStore) lookup(k tenantKey) ([]rules.ConfigurationRule, bool) {
	s.mu.RLock()
	entry, ok := s.entries[k]
	s.mu.RUnlock()
	if !ok || !s.now().Before(entry.expires) {
		return nil, false
	}
	return cloneRules(entry.rules), true
}

func (s *CachingStore) currentGeneration() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// store caches list unless the cache was purged or invalidated since the
// fetch began in generation gen.
func (s *CachingStore) store(k tenantKey, list []rules.ConfigurationRule, gen uint64) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return
	}

	if _, exists := s.entries[k]; !exists && len(s.entries) >= s.maxEntries {
		s.evictLocked(now)
	}
	s.entries[k] = cacheEntry{rules: cloneRules(list), expires: now.Add(s.ttl)}
	s.recorder.UpdateCacheSize(CacheNameMemory, len(s.entries))
}

// evictLocked drops expired entries, or the entry closest to expiry when
// none has expired.
func (s *CachingStore) evictLocked(now time.Time) {
	var (
		oldest    tenantKey
		oldestExp time.Time
		found     bool
	)
	for k, e := range s.entries {
		if !now.Before(e.expires) {
			delete(s.entries, k)
			continue
		}
		if !found || e.expires.Before(oldestExp) {
			oldest, oldestExp, found = k, e.expires, true
		}
	}
	if len(s.entries) >= s.maxEntries && found {
		delete(s.entries, oldest)
	}
}

// Purge drops every cached entry.
func (s *CachingStore) Purge(context.Context) error {
	s.mu.Lock()
	n := len(s.entries)
	s.entries = make(map[tenantKey]cacheEntry)
	s.generation++
	s.mu.Unlock()

	s.recorder.UpdateCacheSize(CacheNameMemory, 0)
	s.logger.Debug("cache purged", "entries", n)
	return nil
}

// InvalidateTenant drops the cached entries of one tenant.
func (s *CachingStore) InvalidateTenant(_ context.Context, tenantID string) error {
	s.mu.Lock()
	for k := range s.entries {
		if k.tenant == tenantID {
			delete(s.entries, k)
		}
	}
	s.generation++
	size := len(s.entries)
	s.mu.Unlock()

	s.recorder.UpdateCacheSize(CacheNameMemory, size)
	return nil
}

// Len returns the number of cached entries, expired ones included.
func (s *CachingStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Ping delegates to the backing store when it supports health checks.
func (s *CachingStore) Ping(ctx context.Context) error {
	if p, ok := s.next.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
