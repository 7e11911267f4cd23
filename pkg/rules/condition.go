package rules

import (
	"fmt"
	"strings"
)

// Operator is a leaf comparison operator.
type Operator string

const (
	OperatorEquals             Operator = "equals"
	OperatorNotEquals          Operator = "not_equals"
	OperatorGreaterThan        Operator = "greater_than"
	OperatorLessThan           Operator = "less_than"
	OperatorGreaterThanOrEqual Operator = "greater_than_or_equal"
	OperatorLessThanOrEqual    Operator = "less_than_or_equal"
	OperatorIn                 Operator = "in"
	OperatorNotIn              Operator = "not_in"
	OperatorContains           Operator = "contains"
	OperatorStartsWith         Operator = "starts_with"
	OperatorEndsWith           Operator = "ends_with"
)

// Supported reports whether op is one of the known leaf operators.
func (op Operator) Supported() bool {
	switch op {
	case OperatorEquals, OperatorNotEquals,
		OperatorGreaterThan, OperatorLessThan,
		OperatorGreaterThanOrEqual, OperatorLessThanOrEqual,
		OperatorIn, OperatorNotIn,
		OperatorContains, OperatorStartsWith, OperatorEndsWith:
		return true
	default:
		return false
	}
}

// Composite operator names used in documents.
const (
	compositeAnd = "and"
	compositeOr  = "or"
)

// MaxDecodeDepth bounds the nesting accepted by DecodeCondition.
const MaxDecodeDepth = 64

// Condition is a node of a condition tree. The set of implementations is
// closed: *LeafCondition, *AndCondition and *OrCondition.
type Condition interface {
	condition()
}

// LeafCondition compares one context field against an operand.
type LeafCondition struct {
	Field    string
	Operator Operator
	Value    Value
}

// AndCondition matches when every child matches. An empty list matches.
type AndCondition struct {
	Conditions []Condition
}

// OrCondition matches when at least one child matches. An empty list does not
// match.
type OrCondition struct {
	Conditions []Condition
}

func (*LeafCondition) condition() {}
func (*AndCondition) condition()  {}
func (*OrCondition) condition()   {}

// Leaf is shorthand for building a leaf node.
func Leaf(field string, op Operator, value Value) *LeafCondition {
	return &LeafCondition{Field: field, Operator: op, Value: value}
}

// And is shorthand for building an and node.
func And(children ...Condition) *AndCondition {
	return &AndCondition{Conditions: children}
}

// Or is shorthand for building an or node.
func Or(children ...Condition) *OrCondition {
	return &OrCondition{Conditions: children}
}

// MalformedConditionError describes a condition document that cannot be
// decoded into a tree.
type MalformedConditionError struct {
	// Path locates the offending node, e.g. "conditions[1].value".
	Path   string
	Reason string
}

// Error returns the error message.
func (e *MalformedConditionError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("malformed condition: %s", e.Reason)
	}
	return fmt.Sprintf("malformed condition at %s: %s", e.Path, e.Reason)
}

// DecodeCondition converts a loosely typed document (as produced by
// encoding/json or yaml.v3) into a condition tree. A nil document yields a
// nil condition. Unknown leaf operators are preserved; they are an evaluation
// concern, not a shape problem.
func DecodeCondition(raw any) (Condition, error) {
	if raw == nil {
		return nil, nil
	}
	return decodeNode(raw, "$", 1)
}

func decodeNode(raw any, path string, depth int) (Condition, error) {
	if depth > MaxDecodeDepth {
		return nil, &MalformedConditionError{Path: path, Reason: fmt.Sprintf("nesting deeper than %d", MaxDecodeDepth)}
	}

	node, ok := asObject(raw)
	if !ok {
		return nil, &MalformedConditionError{Path: path, Reason: fmt.Sprintf("expected object, got %T", raw)}
	}

	opRaw, hasOp := node["operator"]
	// Operators match exactly; "EQUALS" is an unknown operator.
	op, _ := opRaw.(string)
	if hasOp && opRaw != nil {
		if _, isString := opRaw.(string); !isString {
			return nil, &MalformedConditionError{Path: path + ".operator", Reason: fmt.Sprintf("expected string, got %T", opRaw)}
		}
	}

	if _, hasField := node["field"]; !hasField && (op == compositeAnd || op == compositeOr) {
		return decodeComposite(node, op, path, depth)
	}
	return decodeLeaf(node, op, path)
}

func decodeComposite(node map[string]any, op, path string, depth int) (Condition, error) {
	childrenRaw, ok := node["conditions"]
	if !ok {
		return nil, &MalformedConditionError{Path: path, Reason: fmt.Sprintf("%q node requires a conditions list", op)}
	}
	list, ok := childrenRaw.([]any)
	if !ok && childrenRaw != nil {
		return nil, &MalformedConditionError{Path: path + ".conditions", Reason: fmt.Sprintf("expected list, got %T", childrenRaw)}
	}

	children := make([]Condition, 0, len(list))
	for i, childRaw := range list {
		child, err := decodeNode(childRaw, fmt.Sprintf("%s.conditions[%d]", path, i), depth+1)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}

	if op == compositeAnd {
		return &AndCondition{Conditions: children}, nil
	}
	return &OrCondition{Conditions: children}, nil
}

func decodeLeaf(node map[string]any, op, path string) (Condition, error) {
	fieldRaw, ok := node["field"]
	if !ok {
		return nil, &MalformedConditionError{Path: path, Reason: "leaf condition requires a field"}
	}
	field, ok := fieldRaw.(string)
	if !ok || strings.TrimSpace(field) == "" {
		return nil, &MalformedConditionError{Path: path + ".field", Reason: "field must be a non-empty string"}
	}
	if op == "" {
		return nil, &MalformedConditionError{Path: path + ".operator", Reason: "leaf condition requires an operator"}
	}

	operand, err := ValueOf(node["value"])
	if err != nil {
		return nil, &MalformedConditionError{Path: path + ".value", Reason: err.Error()}
	}

	return &LeafCondition{
		Field:    strings.TrimSpace(field),
		Operator: Operator(op),
		Value:    operand,
	}, nil
}

func asObject(raw any) (map[string]any, bool) {
	switch v := raw.(type) {
	case map[string]any:
		return v, true
	case map[any]any:
		out, ok := normalizeYAML(v).(map[string]any)
		return out, ok
	default:
		return nil, false
	}
}

// isNil reports whether c is nil or a typed nil node.
func isNil(c Condition) bool {
	switch node := c.(type) {
	case nil:
		return true
	case *LeafCondition:
		return node == nil
	case *AndCondition:
		return node == nil
	case *OrCondition:
		return node == nil
	default:
		return false
	}
}

// EncodeCondition converts a tree back to its document form.
func EncodeCondition(c Condition) any {
	if isNil(c) {
		return nil
	}
	switch node := c.(type) {
	case nil:
		return nil
	case *LeafCondition:
		return map[string]any{
			"field":    node.Field,
			"operator": string(node.Operator),
			"value":    node.Value.Interface(),
		}
	case *AndCondition:
		return encodeComposite(compositeAnd, node.Conditions)
	case *OrCondition:
		return encodeComposite(compositeOr, node.Conditions)
	default:
		return nil
	}
}

func encodeComposite(op string, children []Condition) map[string]any {
	list := make([]any, len(children))
	for i, child := range children {
		list[i] = EncodeCondition(child)
	}
	return map[string]any{
		"operator":   op,
		"conditions": list,
	}
}

// Depth returns the nesting depth of a tree; a single leaf has depth 1.
func Depth(c Condition) int {
	if isNil(c) {
		return 0
	}
	var children []Condition
	switch node := c.(type) {
	case nil:
		return 0
	case *AndCondition:
		children = node.Conditions
	case *OrCondition:
		children = node.Conditions
	default:
		return 1
	}
	deepest := 0
	for _, child := range children {
		if d := Depth(child); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}

// UnknownOperators lists leaf operators in the tree that are not supported.
func UnknownOperators(c Condition) []Operator {
	var out []Operator
	var walk func(Condition)
	walk = func(n Condition) {
		if isNil(n) {
			return
		}
		switch node := n.(type) {
		case *LeafCondition:
			if !node.Operator.Supported() {
				out = append(out, node.Operator)
			}
		case *AndCondition:
			for _, child := range node.Conditions {
				walk(child)
			}
		case *OrCondition:
			for _, child := range node.Conditions {
				walk(child)
			}
		}
	}
	walk(c)
	return out
}
