package engine

import (
	"log/slog"

	"hera-erp/configrules/pkg/rules"
)

// Selection is the outcome of choosing among candidate rules for one key.
type Selection struct {
	// Rule is the chosen rule, nil when nothing applies.
	Rule *rules.ConfigurationRule

	// Reason explains how Rule was chosen.
	Reason rules.MatchReason

	// CandidatesEvaluated counts active rules for the tenant and key.
	CandidatesEvaluated int

	// SkippedMalformed lists ids of rules skipped because their condition
	// tree failed to decode.
	SkippedMalformed []string
}

// Found reports whether a rule was selected.
func (s Selection) Found() bool {
	return s.Rule != nil
}

// Selector picks the single rule that supplies a config value.
type Selector struct {
	evaluator *Evaluator
	logger    *slog.Logger
}

// NewSelector creates a selector backed by evaluator.
func NewSelector(evaluator *Evaluator, logger *slog.Logger) *Selector {
	if evaluator == nil {
		evaluator = NewEvaluator(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{evaluator: evaluator, logger: logger}
}

// Select chooses a rule for (tenantID, configKey). Candidates belonging to
// another tenant or key, or not active, are ignored. Conditional and override
// rules are tried in priority order and the first match wins; otherwise the
// highest priority default rule is used. The candidates slice is not modified.
func (s *Selector) Select(tenantID, configKey string, candidates []rules.ConfigurationRule, ctx rules.Context) Selection {
	eligible := make([]rules.ConfigurationRule, 0, len(candidates))
	for _, rule := range candidates {
		if rule.TenantID != tenantID || rule.ConfigKey != configKey || !rule.IsActive() {
			continue
		}
		eligible = append(eligible, rule)
	}
	SortRulesByPriority(eligible)

	sel := Selection{
		Reason:              rules.MatchReasonNoMatch,
		CandidatesEvaluated: len(eligible),
	}

	var fallback *rules.ConfigurationRule
	for i := range eligible {
		rule := &eligible[i]

		if rule.IsDefault() {
			// Sorted order makes the first default the highest priority one
			if fallback == nil {
				fallback = rule
			}
			continue
		}

		if !rule.RuleType.Valid() {
			s.logger.Debug("skipping rule with unknown rule type",
				"tenant_id", tenantID,
				"config_key", configKey,
				"rule_id", rule.ID,
				"rule_type", rule.RuleType,
			)
			continue
		}

		if rule.Malformed() {
			sel.SkippedMalformed = append(sel.SkippedMalformed, rule.ID)
			s.logger.Debug("skipping rule with malformed conditions",
				"tenant_id", tenantID,
				"config_key", configKey,
				"rule_id", rule.ID,
				"error", rule.ConditionErr,
			)
			continue
		}

		if s.evaluator.Match(rule.Conditions, ctx) {
			sel.Rule = rule
			sel.Reason = rules.MatchReasonCondition
			return sel
		}
	}

	if fallback != nil {
		sel.Rule = fallback
		sel.Reason = rules.MatchReasonDefault
	}
	return sel
}
