package auth

import (
	"crypto/sha256"
	"sort"
	"sync"

	"hera-erp/configrules/pkg/config"
)

// APIKeyValidator validates API keys against a configured set of keys.
// Keys are indexed by their SHA-256 digest so lookups do not branch on the
// key bytes themselves.
type APIKeyValidator struct {
	mu   sync.RWMutex
	keys map[[sha256.Size]byte]*APIKeyInfo
}

// NewAPIKeyValidator creates a validator for keys.
func NewAPIKeyValidator(keys []*APIKeyInfo) *APIKeyValidator {
	v := &APIKeyValidator{keys: make(map[[sha256.Size]byte]*APIKeyInfo, len(keys))}
	for _, key := range keys {
		v.keys[sha256.Sum256([]byte(key.Key))] = key
	}
	return v
}

// NewValidatorFromConfig creates a validator for the configured keys.
func NewValidatorFromConfig(cfg *config.AuthenticationConfig) *APIKeyValidator {
	keys := make([]*APIKeyInfo, 0, len(cfg.Keys))
	for _, k := range cfg.Keys {
		keys = append(keys, &APIKeyInfo{Key: k.Key, Subject: k.Subject, Enabled: !k.Disabled})
	}
	return NewAPIKeyValidator(keys)
}

// Validate returns the info of key, or ErrInvalidAPIKey / ErrAPIKeyDisabled.
func (v *APIKeyValidator) Validate(key string) (*APIKeyInfo, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	info, ok := v.keys[sha256.Sum256([]byte(key))]
	if !ok {
		return nil, ErrInvalidAPIKey
	}
	if !info.Enabled {
		return nil, ErrAPIKeyDisabled
	}
	return info, nil
}

// Subjects returns the subjects of enabled keys, sorted.
func (v *APIKeyValidator) Subjects() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]string, 0, len(v.keys))
	for _, info := range v.keys {
		if info.Enabled {
			out = append(out, info.Subject)
		}
	}
	sort.Strings(out)
	return out
}

// Revoke disables a key. It reports whether the key was known.
func (v *APIKeyValidator) Revoke(key string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	info, ok := v.keys[sha256.Sum256([]byte(key))]
	if !ok {
		return false
	}
	revoked := *info
	revoked.Enabled = false
	v.keys[sha256.Sum256([]byte(key))] = &revoked
	return true
}
