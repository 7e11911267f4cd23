package store

import (
	"sort"

	"hera-erp/configrules/pkg/rules"
)

type tenantKey struct {
	tenant string
	key    string
}

// snapshot is an immutable index of active rules. Stores swap whole
// snapshots so readers never observe a half-applied reload.
type snapshot struct {
	byKey    map[tenantKey][]rules.ConfigurationRule
	byTenant map[string][]rules.ConfigurationRule
	total    int
}

func newSnapshot(list []rules.ConfigurationRule) *snapshot {
	s := &snapshot{
		byKey:    make(map[tenantKey][]rules.ConfigurationRule),
		byTenant: make(map[string][]rules.ConfigurationRule),
	}
	for _, r := range list {
		if !r.IsActive() {
			continue
		}
		k := tenantKey{tenant: r.TenantID, key: r.ConfigKey}
		s.byKey[k] = append(s.byKey[k], r)
		s.byTenant[r.TenantID] = append(s.byTenant[r.TenantID], r)
		s.total++
	}
	for _, list := range s.byTenant {
		sortByKeyAndID(list)
	}
	return s
}

func (s *snapshot) fetch(tenantID, configKey string) []rules.ConfigurationRule {
	return cloneRules(s.byKey[tenantKey{tenant: tenantID, key: configKey}])
}

func (s *snapshot) list(tenantID string) []rules.ConfigurationRule {
	return cloneRules(s.byTenant[tenantID])
}

func (s *snapshot) tenants() []string {
	out := make([]string, 0, len(s.byTenant))
	for t := range s.byTenant {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// cloneRules returns a copy of the slice so callers cannot reorder or
// overwrite the store's index.
func cloneRules(list []rules.ConfigurationRule) []rules.ConfigurationRule {
	if len(list) == 0 {
		return []rules.ConfigurationRule{}
	}
	out := make([]rules.ConfigurationRule, len(list))
	copy(out, list)
	return out
}

func sortByKeyAndID(list []rules.ConfigurationRule) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].ConfigKey != list[j].ConfigKey {
			return list[i].ConfigKey < list[j].ConfigKey
		}
		return list[i].ID < list[j].ID
	})
}
