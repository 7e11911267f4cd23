package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"hera-erp/configrules/pkg/rules"
)

func rule(id, tenant, key string, rt rules.RuleType, priority int, value any) rules.ConfigurationRule {
	return rules.ConfigurationRule{
		ID:        id,
		TenantID:  tenant,
		ConfigKey: key,
		RuleType:  rt,
		Status:    rules.StatusActive,
		Priority:  priority,
		Value:     value,
	}
}

func ruleIDs(list []rules.ConfigurationRule) []string {
	ids := make([]string, len(list))
	for i, r := range list {
		ids[i] = r.ID
	}
	return ids
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// countingStore counts backing calls and can block or fail them.
type countingStore struct {
	mu      sync.Mutex
	inner   *MemoryStore
	fetches int
	lists   int
	err     error
	gate    chan struct{}
}

func (s *countingStore) FetchActiveRules(ctx context.Context, tenantID, configKey string) ([]rules.ConfigurationRule, error) {
	s.mu.Lock()
	s.fetches++
	err := s.err
	gate := s.gate
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return s.inner.FetchActiveRules(ctx, tenantID, configKey)
}

func (s *countingStore) ListActiveRules(ctx context.Context, tenantID string) ([]rules.ConfigurationRule, error) {
	s.mu.Lock()
	s.lists++
	err := s.err
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.inner.ListActiveRules(ctx, tenantID)
}

func (s *countingStore) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

func (s *countingStore) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// fakeRecorder collects store measurements.
type fakeRecorder struct {
	mu      sync.Mutex
	hits    map[string]int
	misses  map[string]int
	errors  map[string]int
	sizes   map[string]int
	reloads map[string]int
	failed  map[string]int
	loaded  map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{
		hits:    map[string]int{},
		misses:  map[string]int{},
		errors:  map[string]int{},
		sizes:   map[string]int{},
		reloads: map[string]int{},
		failed:  map[string]int{},
		loaded:  map[string]int{},
	}
}

func (r *fakeRecorder) RecordCacheHit(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hits[name]++
}

func (r *fakeRecorder) RecordCacheMiss(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.misses[name]++
}

func (r *fakeRecorder) RecordCacheError(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors[name]++
}

func (r *fakeRecorder) UpdateCacheSize(name string, size int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sizes[name] = size
}

func (r *fakeRecorder) RecordReload(store string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.failed[store]++
		return
	}
	r.reloads[store]++
}

func (r *fakeRecorder) UpdateRulesLoaded(store string, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded[store] = count
}

func (r *fakeRecorder) get(m map[string]int, key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return m[key]
}
