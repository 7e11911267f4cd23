package rules

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RuleType classifies how a rule takes part in selection.
type RuleType string

const (
	// RuleTypeDefault is the fallback rule for a config key.
	RuleTypeDefault RuleType = "default"

	// RuleTypeConditional applies when its condition tree matches.
	RuleTypeConditional RuleType = "conditional"

	// RuleTypeOverride applies when its condition tree matches. It competes
	// with conditional rules purely by priority.
	RuleTypeOverride RuleType = "override"
)

// Valid reports whether t is a known rule type.
func (t RuleType) Valid() bool {
	switch t {
	case RuleTypeDefault, RuleTypeConditional, RuleTypeOverride:
		return true
	default:
		return false
	}
}

// Status is the lifecycle state of a rule.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusArchived Status = "archived"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusArchived:
		return true
	default:
		return false
	}
}

// ConfigurationRule is one rule contributing a value to a config key of a
// tenant. Rules are created and edited outside this module and are read-only
// here.
type ConfigurationRule struct {
	// ID is unique within the tenant.
	ID string

	// TenantID is the isolation key (HERA organization_id).
	TenantID string

	// ConfigKey names the logical setting, e.g. "auto_journal.batch_threshold".
	ConfigKey string

	RuleType RuleType
	Status   Status

	// Priority orders rules sharing a key; higher is evaluated first.
	Priority int

	// Conditions is the decoded condition tree. Nil means the rule always
	// matches.
	Conditions Condition

	// ConditionErr is set when the stored condition tree had a malformed
	// shape. A flagged rule never matches.
	ConditionErr error

	// Value is the configuration payload: a scalar, bool, list or object.
	Value any

	Description string
	UpdatedAt   time.Time

	// rawConditions keeps the undecodable document so a flagged rule
	// round-trips through caches unchanged.
	rawConditions any
}

// IsActive reports whether the rule is a selection candidate.
func (r *ConfigurationRule) IsActive() bool {
	return r.Status == StatusActive
}

// IsDefault reports whether the rule is a default (fallback) rule.
func (r *ConfigurationRule) IsDefault() bool {
	return r.RuleType == RuleTypeDefault
}

// Malformed reports whether the rule's condition tree failed to decode.
func (r *ConfigurationRule) Malformed() bool {
	return r.ConditionErr != nil
}

// Document converts the rule back to its storage form.
func (r *ConfigurationRule) Document() RuleDocument {
	doc := RuleDocument{
		ID:          r.ID,
		TenantID:    r.TenantID,
		ConfigKey:   r.ConfigKey,
		RuleType:    r.RuleType,
		Status:      r.Status,
		Priority:    r.Priority,
		Value:       r.Value,
		Description: r.Description,
	}
	if !r.UpdatedAt.IsZero() {
		updated := r.UpdatedAt.UTC()
		doc.UpdatedAt = &updated
	}
	if r.ConditionErr != nil {
		doc.Conditions = r.rawConditions
	} else if r.Conditions != nil {
		doc.Conditions = EncodeCondition(r.Conditions)
	}
	return doc
}

// MatchReason explains how a resolved value was chosen.
type MatchReason string

const (
	MatchReasonCondition MatchReason = "condition_matched"
	MatchReasonDefault   MatchReason = "default_fallback"
	MatchReasonNoMatch   MatchReason = "no_match"
)

// ResolvedConfiguration is the outcome of evaluating one config key.
// A nil Value with a nil MatchedRuleID means no configuration is defined for
// the key; it is not an error.
type ResolvedConfiguration struct {
	ConfigKey     string      `json:"config_key"`
	Value         any         `json:"value"`
	MatchedRuleID *string     `json:"matched_rule_id"`
	TenantID      string      `json:"organization_id"`
	MatchReason   MatchReason `json:"match_reason"`

	// CandidatesEvaluated counts the active rules considered for the key.
	CandidatesEvaluated int `json:"candidates_evaluated"`
}

// Found reports whether a rule supplied the value.
func (r *ResolvedConfiguration) Found() bool {
	return r.MatchedRuleID != nil
}

// RuleDocument is the storage and wire form of a rule. Conditions stay
// loosely typed until FromDocument decodes them.
type RuleDocument struct {
	ID          string     `json:"id" yaml:"id"`
	TenantID    string     `json:"organization_id" yaml:"organization_id"`
	ConfigKey   string     `json:"config_key" yaml:"config_key"`
	RuleType    RuleType   `json:"rule_type" yaml:"rule_type"`
	Status      Status     `json:"status,omitempty" yaml:"status,omitempty"`
	Priority    int        `json:"priority" yaml:"priority"`
	Conditions  any        `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Value       any        `json:"value" yaml:"value"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// FromDocument decodes a document into a rule. An empty status defaults to
// active. A malformed condition tree is recorded on ConditionErr instead of
// being returned as an error.
func FromDocument(doc RuleDocument) ConfigurationRule {
	rule := ConfigurationRule{
		ID:          strings.TrimSpace(doc.ID),
		TenantID:    strings.TrimSpace(doc.TenantID),
		ConfigKey:   strings.TrimSpace(doc.ConfigKey),
		RuleType:    RuleType(strings.ToLower(strings.TrimSpace(string(doc.RuleType)))),
		Status:      Status(strings.ToLower(strings.TrimSpace(string(doc.Status)))),
		Priority:    doc.Priority,
		Value:       normalizeYAML(doc.Value),
		Description: doc.Description,
	}
	if rule.Status == "" {
		rule.Status = StatusActive
	}
	if doc.UpdatedAt != nil {
		rule.UpdatedAt = doc.UpdatedAt.UTC()
	}

	raw := normalizeYAML(doc.Conditions)
	cond, err := DecodeCondition(raw)
	if err != nil {
		rule.ConditionErr = err
		rule.rawConditions = raw
		return rule
	}
	rule.Conditions = cond
	return rule
}

// ValidateDocument reports structural problems that make a document unusable
// as a rule. Condition problems are not included; see FromDocument.
func ValidateDocument(doc RuleDocument) []string {
	var problems []string
	if strings.TrimSpace(doc.ID) == "" {
		problems = append(problems, "id is required")
	}
	if strings.TrimSpace(doc.TenantID) == "" {
		problems = append(problems, "organization_id is required")
	}
	if strings.TrimSpace(doc.ConfigKey) == "" {
		problems = append(problems, "config_key is required")
	}
	rt := RuleType(strings.ToLower(strings.TrimSpace(string(doc.RuleType))))
	if !rt.Valid() {
		problems = append(problems, fmt.Sprintf("rule_type %q is not one of default|conditional|override", doc.RuleType))
	}
	if doc.Status != "" {
		st := Status(strings.ToLower(strings.TrimSpace(string(doc.Status))))
		if !st.Valid() {
			problems = append(problems, fmt.Sprintf("status %q is not one of active|inactive|archived", doc.Status))
		}
	}
	return problems
}

// MarshalJSON encodes the rule in its document form.
func (r ConfigurationRule) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Document())
}

// UnmarshalJSON decodes a document and its condition tree.
func (r *ConfigurationRule) UnmarshalJSON(data []byte) error {
	var doc RuleDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	*r = FromDocument(doc)
	return nil
}

// normalizeYAML rewrites map[any]any produced by some YAML decoders into
// map[string]any so documents from YAML and JSON look the same.
func normalizeYAML(v any) any {
	switch val := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalizeYAML(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeYAML(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeYAML(item)
		}
		return out
	default:
		return v
	}
}
