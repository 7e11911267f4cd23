package rules

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gopkg.in/yaml.v3"
)

var treeOpts = cmp.Options{
	cmp.Comparer(func(a, b Value) bool { return a.Equal(b) }),
	cmpopts.EquateEmpty(),
}

func TestDecodeCondition_Shapes(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		want    Condition
		wantErr string
	}{
		{
			name: "nil document",
			raw:  nil,
			want: nil,
		},
		{
			name: "leaf",
			raw:  map[string]any{"field": "industry", "operator": "equals", "value": "restaurant"},
			want: Leaf("industry", OperatorEquals, String("restaurant")),
		},
		{
			name: "operator case is significant",
			raw:  map[string]any{"field": "industry", "operator": "EQUALS", "value": "restaurant"},
			want: Leaf("industry", Operator("EQUALS"), String("restaurant")),
		},
		{
			name: "operator is not trimmed",
			raw:  map[string]any{"field": "amount", "operator": " greater_than ", "value": float64(10)},
			want: Leaf("amount", Operator(" greater_than "), Number(10)),
		},
		{
			name:    "upper-case composite is a leaf without a field",
			raw:     map[string]any{"operator": "AND", "conditions": []any{}},
			wantErr: "requires a field",
		},
		{
			name: "in with list operand",
			raw:  map[string]any{"field": "region", "operator": "in", "value": []any{"eu", "uk"}},
			want: Leaf("region", OperatorIn, List(String("eu"), String("uk"))),
		},
		{
			name: "unknown operator is kept",
			raw:  map[string]any{"field": "x", "operator": "matches", "value": "a.*"},
			want: Leaf("x", Operator("matches"), String("a.*")),
		},
		{
			name: "nested composite",
			raw: map[string]any{
				"operator": "and",
				"conditions": []any{
					map[string]any{"field": "industry", "operator": "equals", "value": "salon"},
					map[string]any{
						"operator": "or",
						"conditions": []any{
							map[string]any{"field": "staff", "operator": "greater_than", "value": 5},
							map[string]any{"field": "vip", "operator": "equals", "value": true},
						},
					},
				},
			},
			want: And(
				Leaf("industry", OperatorEquals, String("salon")),
				Or(
					Leaf("staff", OperatorGreaterThan, Number(5)),
					Leaf("vip", OperatorEquals, Bool(true)),
				),
			),
		},
		{
			name: "empty and",
			raw:  map[string]any{"operator": "and", "conditions": []any{}},
			want: And(),
		},
		{
			name:    "not an object",
			raw:     "industry == restaurant",
			wantErr: "expected object",
		},
		{
			name:    "leaf without field",
			raw:     map[string]any{"operator": "equals", "value": 1},
			wantErr: "requires a field",
		},
		{
			name:    "leaf with empty field",
			raw:     map[string]any{"field": " ", "operator": "equals", "value": 1},
			wantErr: "non-empty string",
		},
		{
			name:    "leaf without operator",
			raw:     map[string]any{"field": "x", "value": 1},
			wantErr: "requires an operator",
		},
		{
			name:    "operator not a string",
			raw:     map[string]any{"field": "x", "operator": 3, "value": 1},
			wantErr: "expected string",
		},
		{
			name:    "composite without conditions",
			raw:     map[string]any{"operator": "or"},
			wantErr: "requires a conditions list",
		},
		{
			name:    "conditions not a list",
			raw:     map[string]any{"operator": "and", "conditions": map[string]any{}},
			wantErr: "expected list",
		},
		{
			name:    "object operand",
			raw:     map[string]any{"field": "x", "operator": "equals", "value": map[string]any{"a": 1}},
			wantErr: "unsupported value type",
		},
		{
			name:    "nested list operand",
			raw:     map[string]any{"field": "x", "operator": "in", "value": []any{[]any{1}}},
			wantErr: "list element 0",
		},
		{
			name: "malformed child",
			raw: map[string]any{
				"operator":   "or",
				"conditions": []any{map[string]any{"field": "a", "operator": "equals"}, 42},
			},
			wantErr: "$.conditions[1]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeCondition(tt.raw)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("DecodeCondition() error = nil, want %q", tt.wantErr)
				}
				var malformed *MalformedConditionError
				if !errors.As(err, &malformed) {
					t.Fatalf("DecodeCondition() error type = %T, want *MalformedConditionError", err)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("DecodeCondition() error = %q, want substring %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeCondition() unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got, treeOpts); diff != "" {
				t.Errorf("DecodeCondition() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeCondition_DepthLimit(t *testing.T) {
	var raw any = map[string]any{"field": "x", "operator": "equals", "value": 1}
	for i := 0; i < MaxDecodeDepth; i++ {
		raw = map[string]any{"operator": "and", "conditions": []any{raw}}
	}

	_, err := DecodeCondition(raw)
	if err == nil {
		t.Fatal("expected depth error")
	}
	if !strings.Contains(err.Error(), "nesting deeper than") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDecodeCondition_FromJSONAndYAML(t *testing.T) {
	jsonDoc := `{"operator":"or","conditions":[{"field":"industry","operator":"in","value":["restaurant","cafe"]},{"field":"covers","operator":"greater_than_or_equal","value":120}]}`
	yamlDoc := `
operator: or
conditions:
  - field: industry
    operator: in
    value: [restaurant, cafe]
  - field: covers
    operator: greater_than_or_equal
    value: 120
`
	var fromJSON, fromYAML any
	if err := json.Unmarshal([]byte(jsonDoc), &fromJSON); err != nil {
		t.Fatal(err)
	}
	if err := yaml.Unmarshal([]byte(yamlDoc), &fromYAML); err != nil {
		t.Fatal(err)
	}

	a, err := DecodeCondition(fromJSON)
	if err != nil {
		t.Fatalf("json decode: %v", err)
	}
	b, err := DecodeCondition(fromYAML)
	if err != nil {
		t.Fatalf("yaml decode: %v", err)
	}

	if diff := cmp.Diff(a, b, treeOpts); diff != "" {
		t.Errorf("json and yaml trees differ (-json +yaml):\n%s", diff)
	}
}

func TestEncodeCondition_RoundTrip(t *testing.T) {
	tree := Or(
		Leaf("industry", OperatorEquals, String("jewelry")),
		And(
			Leaf("karat", OperatorGreaterThan, Number(18)),
			Leaf("stone", OperatorNotIn, List(String("cz"), String("glass"))),
		),
		And(),
	)

	decoded, err := DecodeCondition(EncodeCondition(tree))
	if err != nil {
		t.Fatalf("decode of encoded tree failed: %v", err)
	}
	if diff := cmp.Diff(Condition(tree), decoded, treeOpts); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDepthAndUnknownOperators(t *testing.T) {
	tree := And(
		Leaf("a", OperatorEquals, String("x")),
		Or(Leaf("b", Operator("regex"), String("y")), Leaf("c", Operator("between"), Number(1))),
	)
	if got := Depth(tree); got != 3 {
		t.Errorf("Depth() = %d, want 3", got)
	}
	if got := Depth(nil); got != 0 {
		t.Errorf("Depth(nil) = %d, want 0", got)
	}
	got := UnknownOperators(tree)
	want := []Operator{"regex", "between"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("UnknownOperators() mismatch (-want +got):\n%s", diff)
	}
}

func TestTypedNilNodes(t *testing.T) {
	var leaf *LeafCondition
	var or *OrCondition
	tree := And(Leaf("a", OperatorEquals, String("x")), leaf, or)

	if got := Depth(tree); got != 2 {
		t.Errorf("Depth() = %d, want 2", got)
	}
	if got := Depth(leaf); got != 0 {
		t.Errorf("Depth(typed nil) = %d, want 0", got)
	}
	if got := UnknownOperators(tree); len(got) != 0 {
		t.Errorf("UnknownOperators() = %v, want none", got)
	}
	if got := EncodeCondition(or); got != nil {
		t.Errorf("EncodeCondition(typed nil) = %v, want nil", got)
	}
}
