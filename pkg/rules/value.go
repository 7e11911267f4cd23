package rules

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindList
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a closed variant used for context fields and condition operands.
// Lists only appear as operands of in and not_in.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	list []Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number returns a numeric value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// List returns a list value.
func List(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindList, list: cp}
}

// Kind returns the variant of v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Items returns the elements of a list value, or nil.
func (v Value) Items() []Value {
	if v.kind != KindList {
		return nil
	}
	return v.list
}

// Equal is strict equality: same kind and same value. Lists compare
// element-wise.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Float coerces v to a number. Numeric strings are parsed after trimming and
// bools map to 1 and 0. The second result is false when coercion fails
// (the NaN case), including for empty strings, null and lists.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.num) {
			return 0, false
		}
		return v.num, true
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	case KindString:
		s := strings.TrimSpace(v.str)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Text renders v as a string: numbers in shortest decimal form, bools as
// "true"/"false", lists comma-joined and null as "".
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.Text()
		}
		return strings.Join(parts, ",")
	default:
		return ""
	}
}

// Interface returns v as a plain Go value (nil, string, float64, bool or
// []any).
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

// GoString implements fmt.GoStringer for readable test failures.
func (v Value) GoString() string {
	switch v.kind {
	case KindString:
		return strconv.Quote(v.str)
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.GoString()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindNull:
		return "null"
	default:
		return v.Text()
	}
}

// MarshalJSON encodes the plain form of v.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON decodes a scalar or a list of scalars.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	val, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

// ValueOf converts a plain Go value into a Value. Scalars and lists of
// scalars are accepted; maps and nested lists are rejected.
func ValueOf(raw any) (Value, error) {
	return valueOf(raw, true)
}

// ScalarOf converts a plain Go value into a scalar Value, rejecting lists.
func ScalarOf(raw any) (Value, error) {
	return valueOf(raw, false)
}

func valueOf(raw any, allowList bool) (Value, error) {
	switch val := raw.(type) {
	case nil:
		return Null(), nil
	case Value:
		if val.kind == KindList && !allowList {
			return Value{}, fmt.Errorf("list value not allowed here")
		}
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case float64:
		return Number(val), nil
	case float32:
		return Number(float64(val)), nil
	case int:
		return Number(float64(val)), nil
	case int8:
		return Number(float64(val)), nil
	case int16:
		return Number(float64(val)), nil
	case int32:
		return Number(float64(val)), nil
	case int64:
		return Number(float64(val)), nil
	case uint:
		return Number(float64(val)), nil
	case uint8:
		return Number(float64(val)), nil
	case uint16:
		return Number(float64(val)), nil
	case uint32:
		return Number(float64(val)), nil
	case uint64:
		return Number(float64(val)), nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q: %w", val.String(), err)
		}
		return Number(f), nil
	case []any:
		if !allowList {
			return Value{}, fmt.Errorf("list value not allowed here")
		}
		items := make([]Value, 0, len(val))
		for i, item := range val {
			elem, err := valueOf(item, false)
			if err != nil {
				return Value{}, fmt.Errorf("list element %d: %w", i, err)
			}
			items = append(items, elem)
		}
		return Value{kind: KindList, list: items}, nil
	case []string:
		if !allowList {
			return Value{}, fmt.Errorf("list value not allowed here")
		}
		items := make([]Value, len(val))
		for i, item := range val {
			items[i] = String(item)
		}
		return Value{kind: KindList, list: items}, nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", raw)
	}
}

// Context maps field names to scalar values for one evaluation. It is
// supplied per call and never persisted.
type Context map[string]Value

// Lookup returns the value of field and whether it is present.
func (c Context) Lookup(field string) (Value, bool) {
	if c == nil {
		return Value{}, false
	}
	v, ok := c[field]
	return v, ok
}

// ContextFromMap converts a decoded JSON object into a Context. Nested
// objects and lists are rejected.
func ContextFromMap(m map[string]any) (Context, error) {
	ctx := make(Context, len(m))
	for field, raw := range m {
		v, err := ScalarOf(raw)
		if err != nil {
			return nil, fmt.Errorf("context field %q: %w", field, err)
		}
		ctx[field] = v
	}
	return ctx, nil
}

// ParseContextPairs builds a Context from "field=value" pairs as given on a
// command line. Values that parse as numbers or bools are typed accordingly;
// everything else is a string.
func ParseContextPairs(pairs []string) (Context, error) {
	ctx := make(Context, len(pairs))
	for _, pair := range pairs {
		field, raw, ok := strings.Cut(pair, "=")
		field = strings.TrimSpace(field)
		if !ok || field == "" {
			return nil, fmt.Errorf("context pair %q must look like field=value", pair)
		}
		switch {
		case raw == "true" || raw == "false":
			ctx[field] = Bool(raw == "true")
		default:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				ctx[field] = Number(f)
			} else {
				ctx[field] = String(raw)
			}
		}
	}
	return ctx, nil
}
