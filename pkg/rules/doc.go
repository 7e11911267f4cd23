// Package rules defines the data model of HERA configuration rules: the rule
// record, the condition tree, the typed evaluation context and the resolved
// configuration returned to callers.
//
// # Condition Trees
//
// Conditions form a closed tagged union:
//
//	LeafCondition  {field, operator, value}
//	AndCondition   {conditions: [...]}
//	OrCondition    {conditions: [...]}
//
// Trees arrive from storage as loosely typed documents (JSON or YAML). They are
// decoded exactly once, when a RuleDocument is converted with FromDocument.
// Structural problems do not fail the load; they flag the rule through
// ConfigurationRule.ConditionErr so the evaluator can treat it as non-matching
// while sibling rules keep working.
//
//	doc := rules.RuleDocument{
//	    ID:        "r-100",
//	    TenantID:  "org-1",
//	    ConfigKey: "auto_journal.batch_threshold",
//	    RuleType:  rules.RuleTypeConditional,
//	    Priority:  100,
//	    Conditions: map[string]any{
//	        "field": "industry", "operator": "equals", "value": "restaurant",
//	    },
//	    Value: 500,
//	}
//	rule := rules.FromDocument(doc)
//
// # Context
//
// An evaluation context maps field names to scalar values (string, number,
// bool). ContextFromMap converts a decoded JSON object and rejects nested
// values.
package rules
