package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"hera-erp/configrules/pkg/rules"
)

var genIndustry = gen.OneConstOf("restaurant", "salon", "jewelry", "bpo", "audit", "furniture")

// genValue produces scalar context and operand values of every kind.
func genValue() gopter.Gen {
	return gen.OneGenOf(
		genIndustry.Map(func(s string) rules.Value { return rules.String(s) }),
		gen.IntRange(-5, 5).Map(func(n int) rules.Value { return rules.Number(float64(n)) }),
		gen.IntRange(-5, 5).Map(func(n int) rules.Value { return rules.String(fmt.Sprint(n)) }),
		gen.Bool().Map(func(b bool) rules.Value { return rules.Bool(b) }),
		gen.Const(rules.String("")),
	)
}

// TestProperty_NotEqualsNegatesEquals checks not_equals against equals for
// present and absent fields.
func TestProperty_NotEqualsNegatesEquals(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	eval := NewEvaluator(0)

	properties.Property("not_equals is the negation of equals", prop.ForAll(
		func(actual, operand rules.Value, present bool) bool {
			ctx := rules.Context{}
			if present {
				ctx["f"] = actual
			}
			eq := eval.Match(rules.Leaf("f", rules.OperatorEquals, operand), ctx)
			ne := eval.Match(rules.Leaf("f", rules.OperatorNotEquals, operand), ctx)
			return eq != ne
		},
		genValue(), genValue(), gen.Bool(),
	))

	properties.Property("not_in is the negation of in for list operands", prop.ForAll(
		func(actual, a, b rules.Value, present bool) bool {
			ctx := rules.Context{}
			if present {
				ctx["f"] = actual
			}
			list := rules.List(a, b)
			in := eval.Match(rules.Leaf("f", rules.OperatorIn, list), ctx)
			notIn := eval.Match(rules.Leaf("f", rules.OperatorNotIn, list), ctx)
			return in != notIn
		},
		genValue(), genValue(), genValue(), gen.Bool(),
	))

	properties.TestingRun(t)
}

// TestProperty_NumericTrichotomy checks that coercible values order totally
// and that NaN values compare false both ways.
func TestProperty_NumericTrichotomy(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())
	eval := NewEvaluator(0)

	properties.Property("exactly one of <, =, > holds for numbers", prop.ForAll(
		func(a, b int) bool {
			ctx := rules.Context{"n": rules.Number(float64(a))}
			operand := rules.String(fmt.Sprint(b))
			lt := eval.Match(rules.Leaf("n", rules.OperatorLessThan, operand), ctx)
			gt := eval.Match(rules.Leaf("n", rules.OperatorGreaterThan, operand), ctx)
			le := eval.Match(rules.Leaf("n", rules.OperatorLessThanOrEqual, operand), ctx)
			ge := eval.Match(rules.Leaf("n", rules.OperatorGreaterThanOrEqual, operand), ctx)
			count := 0
			for _, v := range []bool{lt, gt, le && ge} {
				if v {
					count++
				}
			}
			return count == 1
		},
		gen.IntRange(-1000, 1000), gen.IntRange(-1000, 1000),
	))

	properties.Property("non-numeric strings never compare", prop.ForAll(
		func(industry string, n int) bool {
			ctx := rules.Context{"f": rules.String(industry)}
			operand := rules.Number(float64(n))
			for _, op := range []rules.Operator{
				rules.OperatorLessThan, rules.OperatorGreaterThan,
				rules.OperatorLessThanOrEqual, rules.OperatorGreaterThanOrEqual,
			} {
				if eval.Match(rules.Leaf("f", op, operand), ctx) {
					return false
				}
			}
			return true
		},
		genIndustry, gen.IntRange(-100, 100),
	))

	properties.TestingRun(t)
}

// TestProperty_Selection checks priority ordering, determinism and tenant
// isolation over generated rule sets.
func TestProperty_Selection(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 150
	properties := gopter.NewProperties(parameters)

	type ruleShape struct {
		Priority int
		Industry string
		Default  bool
		Tenant   int
	}
	genShape := gopter.CombineGens(
		gen.IntRange(0, 5),
		genIndustry,
		gen.Weighted([]gen.WeightedGen{{Weight: 1, Gen: gen.Const(true)}, {Weight: 4, Gen: gen.Const(false)}}),
		gen.IntRange(1, 2),
	).Map(func(vals []interface{}) ruleShape {
		return ruleShape{
			Priority: vals[0].(int),
			Industry: vals[1].(string),
			Default:  vals[2].(bool),
			Tenant:   vals[3].(int),
		}
	})

	build := func(shapes []ruleShape) []rules.ConfigurationRule {
		out := make([]rules.ConfigurationRule, len(shapes))
		for i, s := range shapes {
			rt := rules.RuleTypeConditional
			if s.Default {
				rt = rules.RuleTypeDefault
			}
			r := rule(fmt.Sprintf("r-%03d", i), rt, s.Priority, industryIs(s.Industry), i)
			r.TenantID = fmt.Sprintf("org-%d", s.Tenant)
			out[i] = r
		}
		return out
	}

	properties.Property("winner is the highest priority matching rule of the tenant", prop.ForAll(
		func(shapes []ruleShape, industry string) bool {
			candidates := build(shapes)
			ctx := rules.Context{"industry": rules.String(industry)}
			sel := NewSelector(nil, nil).Select("org-1", testKey, candidates, ctx)

			var best *rules.ConfigurationRule
			for i := range candidates {
				c := &candidates[i]
				if c.TenantID != "org-1" || c.IsDefault() || shapes[i].Industry != industry {
					continue
				}
				if best == nil || c.Priority > best.Priority || (c.Priority == best.Priority && c.ID < best.ID) {
					best = c
				}
			}
			if best != nil {
				return sel.Reason == rules.MatchReasonCondition && sel.Rule.ID == best.ID
			}
			if sel.Rule != nil {
				return sel.Reason == rules.MatchReasonDefault && sel.Rule.IsDefault() && sel.Rule.TenantID == "org-1"
			}
			return sel.Reason == rules.MatchReasonNoMatch
		},
		gen.SliceOfN(8, genShape), genIndustry,
	))

	properties.Property("evaluation is deterministic", prop.ForAll(
		func(shapes []ruleShape, industry string) bool {
			eng, err := NewEngine(nil, &stubStore{rules: build(shapes)}, nil)
			if err != nil {
				return false
			}
			ctx := rules.Context{"industry": rules.String(industry)}
			first, err := eng.Evaluate(context.Background(), "org-1", testKey, ctx)
			if err != nil {
				return false
			}
			for i := 0; i < 3; i++ {
				again, err := eng.Evaluate(context.Background(), "org-1", testKey, ctx)
				if err != nil {
					return false
				}
				if (first.MatchedRuleID == nil) != (again.MatchedRuleID == nil) {
					return false
				}
				if first.MatchedRuleID != nil && *first.MatchedRuleID != *again.MatchedRuleID {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(6, genShape), genIndustry,
	))

	properties.TestingRun(t)
}
