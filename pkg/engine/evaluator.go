package engine

import (
	"hera-erp/configrules/pkg/rules"
)

// Evaluator decides whether a condition tree holds for a context. It is pure
// and safe for concurrent use.
type Evaluator struct {
	maxDepth int
}

// NewEvaluator creates an evaluator that treats trees deeper than maxDepth as
// non-matching. A non-positive maxDepth uses the default of 32.
func NewEvaluator(maxDepth int) *Evaluator {
	if maxDepth <= 0 {
		maxDepth = DefaultEngineConfig().MaxConditionDepth
	}
	return &Evaluator{maxDepth: maxDepth}
}

// Match evaluates a condition tree. A nil condition always matches.
func (e *Evaluator) Match(cond rules.Condition, ctx rules.Context) bool {
	if cond == nil {
		return true
	}
	return e.match(cond, ctx, 1)
}

func (e *Evaluator) match(cond rules.Condition, ctx rules.Context, depth int) bool {
	if depth > e.maxDepth {
		return false
	}

	switch node := cond.(type) {
	case *rules.LeafCondition:
		if node == nil {
			return false
		}
		actual, present := ctx.Lookup(node.Field)
		return evaluateOperator(node.Operator, actual, present, node.Value)

	case *rules.AndCondition:
		if node == nil {
			return false
		}
		for _, child := range node.Conditions {
			// Short-circuit: any failing child fails the node
			if !e.match(child, ctx, depth+1) {
				return false
			}
		}
		return true

	case *rules.OrCondition:
		if node == nil {
			return false
		}
		for _, child := range node.Conditions {
			if e.match(child, ctx, depth+1) {
				return true
			}
		}
		return false

	default:
		// Untyped nil children and unknown node types never match
		return false
	}
}
