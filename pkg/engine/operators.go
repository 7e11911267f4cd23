package engine

import (
	"strings"

	"hera-erp/configrules/pkg/rules"
)

// evaluateOperator applies op to a context value and a condition operand.
// present is false when the context has no such field; positive operators
// then fail and their negations succeed.
func evaluateOperator(op rules.Operator, actual rules.Value, present bool, operand rules.Value) bool {
	switch op {
	case rules.OperatorEquals:
		return present && actual.Equal(operand)

	case rules.OperatorNotEquals:
		return !(present && actual.Equal(operand))

	case rules.OperatorGreaterThan:
		return present && compareNumeric(actual, operand, func(a, b float64) bool { return a > b })

	case rules.OperatorLessThan:
		return present && compareNumeric(actual, operand, func(a, b float64) bool { return a < b })

	case rules.OperatorGreaterThanOrEqual:
		return present && compareNumeric(actual, operand, func(a, b float64) bool { return a >= b })

	case rules.OperatorLessThanOrEqual:
		return present && compareNumeric(actual, operand, func(a, b float64) bool { return a <= b })

	case rules.OperatorIn:
		if operand.Kind() != rules.KindList {
			return false
		}
		return present && evaluateIn(actual, operand)

	case rules.OperatorNotIn:
		if operand.Kind() != rules.KindList {
			return false
		}
		return !(present && evaluateIn(actual, operand))

	case rules.OperatorContains:
		return present && strings.Contains(actual.Text(), operand.Text())

	case rules.OperatorStartsWith:
		return present && strings.HasPrefix(actual.Text(), operand.Text())

	case rules.OperatorEndsWith:
		return present && strings.HasSuffix(actual.Text(), operand.Text())

	default:
		return false
	}
}

// compareNumeric coerces both sides to numbers. A side that cannot be coerced
// behaves like NaN, so every comparison is false.
func compareNumeric(actual, expected rules.Value, cmp func(a, b float64) bool) bool {
	a, ok := actual.Float()
	if !ok {
		return false
	}
	b, ok := expected.Float()
	if !ok {
		return false
	}
	return cmp(a, b)
}

// evaluateIn checks list membership using strict equality.
func evaluateIn(actual, list rules.Value) bool {
	for _, item := range list.Items() {
		if actual.Equal(item) {
			return true
		}
	}
	return false
}
