package store

import (
	"context"
	"sync"

	"hera-erp/configrules/pkg/rules"
)

// MemoryStore serves rules held in memory.
type MemoryStore struct {
	mu    sync.RWMutex
	all   []rules.ConfigurationRule
	index *snapshot
}

// NewMemoryStore creates a store holding list.
func NewMemoryStore(list ...rules.ConfigurationRule) *MemoryStore {
	s := &MemoryStore{}
	s.Replace(list)
	return s
}

// NewMemoryStoreFromDocuments decodes documents into a store. Documents
// with structural problems are rejected as a whole.
func NewMemoryStoreFromDocuments(docs []rules.RuleDocument) (*MemoryStore, error) {
	list, err := decodeDocuments(docs, "memory")
	if err != nil {
		return nil, err
	}
	return NewMemoryStore(list...), nil
}

// Replace swaps the stored rules for list.
func (s *MemoryStore) Replace(list []rules.ConfigurationRule) {
	all := make([]rules.ConfigurationRule, len(list))
	copy(all, list)
	index := newSnapshot(all)

	s.mu.Lock()
	s.all = all
	s.index = index
	s.mu.Unlock()
}

// Add appends rules to the store.
func (s *MemoryStore) Add(list ...rules.ConfigurationRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.all = append(s.all, list...)
	s.index = newSnapshot(s.all)
}

// FetchActiveRules returns the active rules for one tenant and key.
func (s *MemoryStore) FetchActiveRules(ctx context.Context, tenantID, configKey string) ([]rules.ConfigurationRule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.fetch(tenantID, configKey), nil
}

// ListActiveRules returns every active rule of a tenant.
func (s *MemoryStore) ListActiveRules(ctx context.Context, tenantID string) ([]rules.ConfigurationRule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.list(tenantID), nil
}

// Tenants returns the tenants that have at least one active rule.
func (s *MemoryStore) Tenants() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.tenants()
}

// Len returns the number of active rules.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.total
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}
