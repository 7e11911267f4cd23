package engine

import (
	"testing"

	"hera-erp/configrules/pkg/rules"
)

// TestMatch_LeafOperators tests every leaf operator against typed context values
func TestMatch_LeafOperators(t *testing.T) {
	ctx := rules.Context{
		"industry": rules.String("restaurant"),
		"covers":   rules.Number(120),
		"staff":    rules.String(" 12 "),
		"vip":      rules.Bool(true),
		"blank":    rules.String(""),
		"code":     rules.String("POS-0042"),
		"ratio":    rules.Number(0.5),
	}

	tests := []struct {
		name      string
		field     string
		operator  rules.Operator
		operand   rules.Value
		wantMatch bool
	}{
		{"equals string", "industry", rules.OperatorEquals, rules.String("restaurant"), true},
		{"equals is case sensitive", "industry", rules.OperatorEquals, rules.String("Restaurant"), false},
		{"equals is strict across kinds", "covers", rules.OperatorEquals, rules.String("120"), false},
		{"equals bool", "vip", rules.OperatorEquals, rules.Bool(true), true},
		{"not equals", "industry", rules.OperatorNotEquals, rules.String("salon"), true},
		{"not equals same value", "industry", rules.OperatorNotEquals, rules.String("restaurant"), false},

		{"greater than", "covers", rules.OperatorGreaterThan, rules.Number(100), true},
		{"greater than equal values", "covers", rules.OperatorGreaterThan, rules.Number(120), false},
		{"greater or equal", "covers", rules.OperatorGreaterThanOrEqual, rules.Number(120), true},
		{"less than", "covers", rules.OperatorLessThan, rules.Number(200), true},
		{"less or equal", "covers", rules.OperatorLessThanOrEqual, rules.Number(119), false},
		{"numeric string context", "staff", rules.OperatorGreaterThan, rules.Number(10), true},
		{"numeric string operand", "covers", rules.OperatorLessThan, rules.String("121"), true},
		{"bool coerces to one", "vip", rules.OperatorGreaterThanOrEqual, rules.Number(1), true},
		{"empty string is NaN", "blank", rules.OperatorLessThan, rules.Number(1), false},
		{"empty string is NaN for greater or equal", "blank", rules.OperatorGreaterThanOrEqual, rules.Number(0), false},
		{"text is NaN", "industry", rules.OperatorGreaterThan, rules.Number(0), false},
		{"list operand is NaN", "covers", rules.OperatorGreaterThan, rules.List(rules.Number(1)), false},

		{"in", "industry", rules.OperatorIn, rules.List(rules.String("cafe"), rules.String("restaurant")), true},
		{"in miss", "industry", rules.OperatorIn, rules.List(rules.String("salon")), false},
		{"in is strict", "covers", rules.OperatorIn, rules.List(rules.String("120")), false},
		{"in with scalar operand", "industry", rules.OperatorIn, rules.String("restaurant"), false},
		{"not in", "industry", rules.OperatorNotIn, rules.List(rules.String("salon")), true},
		{"not in hit", "industry", rules.OperatorNotIn, rules.List(rules.String("restaurant")), false},
		{"not in with scalar operand", "industry", rules.OperatorNotIn, rules.String("salon"), false},

		{"contains", "code", rules.OperatorContains, rules.String("-00"), true},
		{"contains number rendered", "covers", rules.OperatorContains, rules.Number(12), true},
		{"starts with", "code", rules.OperatorStartsWith, rules.String("POS"), true},
		{"starts with miss", "code", rules.OperatorStartsWith, rules.String("pos"), false},
		{"ends with", "code", rules.OperatorEndsWith, rules.Number(42), true},
		{"ends with decimal", "ratio", rules.OperatorEndsWith, rules.String(".5"), true},
		{"bool rendered", "vip", rules.OperatorStartsWith, rules.String("tr"), true},

		{"unknown operator", "industry", rules.Operator("matches"), rules.String(".*"), false},
		{"upper-case operator is unknown", "industry", rules.Operator("EQUALS"), rules.String("restaurant"), false},
	}

	eval := NewEvaluator(0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := eval.Match(rules.Leaf(tt.field, tt.operator, tt.operand), ctx)
			if got != tt.wantMatch {
				t.Errorf("Match() = %v, want %v", got, tt.wantMatch)
			}
		})
	}
}

// TestMatch_MissingField tests operators against a field the context lacks
func TestMatch_MissingField(t *testing.T) {
	tests := []struct {
		operator  rules.Operator
		operand   rules.Value
		wantMatch bool
	}{
		{rules.OperatorEquals, rules.String("x"), false},
		{rules.OperatorNotEquals, rules.String("x"), true},
		{rules.OperatorGreaterThan, rules.Number(0), false},
		{rules.OperatorLessThan, rules.Number(0), false},
		{rules.OperatorGreaterThanOrEqual, rules.Number(0), false},
		{rules.OperatorLessThanOrEqual, rules.Number(0), false},
		{rules.OperatorIn, rules.List(rules.String("x")), false},
		{rules.OperatorNotIn, rules.List(rules.String("x")), true},
		{rules.OperatorContains, rules.String(""), false},
		{rules.OperatorStartsWith, rules.String(""), false},
		{rules.OperatorEndsWith, rules.String(""), false},
	}

	eval := NewEvaluator(0)
	for _, tt := range tests {
		t.Run(string(tt.operator), func(t *testing.T) {
			got := eval.Match(rules.Leaf("absent", tt.operator, tt.operand), rules.Context{})
			if got != tt.wantMatch {
				t.Errorf("Match() = %v, want %v", got, tt.wantMatch)
			}
		})
	}
}

// TestMatch_Composite tests and/or nodes including the empty cases
func TestMatch_Composite(t *testing.T) {
	ctx := rules.Context{"industry": rules.String("salon"), "staff": rules.Number(4)}
	isSalon := rules.Leaf("industry", rules.OperatorEquals, rules.String("salon"))
	isLarge := rules.Leaf("staff", rules.OperatorGreaterThan, rules.Number(10))

	tests := []struct {
		name      string
		cond      rules.Condition
		wantMatch bool
	}{
		{"nil condition", nil, true},
		{"empty and", rules.And(), true},
		{"empty or", rules.Or(), false},
		{"and all true", rules.And(isSalon, rules.Leaf("staff", rules.OperatorLessThan, rules.Number(5))), true},
		{"and one false", rules.And(isSalon, isLarge), false},
		{"or one true", rules.Or(isLarge, isSalon), true},
		{"or none true", rules.Or(isLarge, rules.Leaf("industry", rules.OperatorEquals, rules.String("bpo"))), false},
		{"nested", rules.Or(rules.And(isSalon, isLarge), rules.And(isSalon, rules.Or())), false},
		{"nested empty and", rules.Or(isLarge, rules.And()), true},
		{"nil child", rules.And(isSalon, nil), false},
	}

	eval := NewEvaluator(0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eval.Match(tt.cond, ctx); got != tt.wantMatch {
				t.Errorf("Match() = %v, want %v", got, tt.wantMatch)
			}
		})
	}
}

// TestMatch_TypedNilNodes tests that nil node pointers fail closed
func TestMatch_TypedNilNodes(t *testing.T) {
	var (
		leaf *rules.LeafCondition
		and  *rules.AndCondition
		or   *rules.OrCondition
	)
	ctx := rules.Context{"industry": rules.String("salon")}
	isSalon := rules.Leaf("industry", rules.OperatorEquals, rules.String("salon"))

	tests := []struct {
		name      string
		cond      rules.Condition
		wantMatch bool
	}{
		{"nil leaf root", leaf, false},
		{"nil and root", and, false},
		{"nil or root", or, false},
		{"nil leaf child of and", rules.And(isSalon, leaf), false},
		{"nil leaf child of or", rules.Or(leaf, isSalon), true},
		{"nil composite child", rules.Or(and, or), false},
	}

	eval := NewEvaluator(0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eval.Match(tt.cond, ctx); got != tt.wantMatch {
				t.Errorf("Match() = %v, want %v", got, tt.wantMatch)
			}
		})
	}
}

// TestMatch_DepthLimit tests that trees deeper than the limit fail closed
func TestMatch_DepthLimit(t *testing.T) {
	build := func(depth int) rules.Condition {
		var cond rules.Condition = rules.Leaf("x", rules.OperatorEquals, rules.Number(1))
		for i := 1; i < depth; i++ {
			cond = rules.And(cond)
		}
		return cond
	}
	ctx := rules.Context{"x": rules.Number(1)}
	eval := NewEvaluator(4)

	if !eval.Match(build(4), ctx) {
		t.Error("tree at the depth limit should match")
	}
	if eval.Match(build(5), ctx) {
		t.Error("tree beyond the depth limit should not match")
	}
	if got := rules.Depth(build(5)); got != 5 {
		t.Errorf("Depth() = %d, want 5", got)
	}
}
