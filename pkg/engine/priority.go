package engine

import (
	"sort"

	"hera-erp/configrules/pkg/rules"
)

// SortRulesByPriority sorts rules by priority (highest first). Equal
// priorities are ordered by id so the result is deterministic.
func SortRulesByPriority(candidates []rules.ConfigurationRule) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].ID < candidates[j].ID
	})
}
