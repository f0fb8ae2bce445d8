// Package types defines the values produced by the expression evaluator.
// A value is one of: absent, bool, int, list, or a named result.
package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ValueType represents the tag of a Value.
type ValueType int

const (
	TypeAbsent ValueType = iota // no result produced
	TypeBool                    // bool
	TypeInt                     // int64
	TypeList                    // []Value
	TypeNamed                   // name plus optional argument list
)

// String returns the type name used in diagnostics.
func (t ValueType) String() string {
	switch t {
	case TypeAbsent:
		return "absent"
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeList:
		return "list"
	case TypeNamed:
		return "named"
	default:
		return "unknown"
	}
}

// Value is a tagged union over the evaluator's result kinds.
type Value struct {
	typ     ValueType
	boolVal bool
	intVal  int64
	listVal []Value
	name    string
	hasArgs bool
}

// Absent is the value of a statement that produced no result.
var Absent = Value{typ: TypeAbsent}

// NewBool creates a boolean value.
func NewBool(v bool) Value {
	return Value{typ: TypeBool, boolVal: v}
}

// NewInt creates an integer value (64-bit).
func NewInt(v int64) Value {
	return Value{typ: TypeInt, intVal: v}
}

// NewList creates a list value from a slice of values.
func NewList(v []Value) Value {
	return Value{typ: TypeList, listVal: v}
}

// NewNamed creates a named result. args must be a list or Absent; Absent
// records a call written without arguments, e.g. f().
func NewNamed(name string, args Value) Value {
	v := Value{typ: TypeNamed, name: name}
	if args.typ == TypeList {
		v.listVal = args.listVal
		v.hasArgs = true
	}
	return v
}

// Type returns the value's tag.
func (v Value) Type() ValueType {
	return v.typ
}

// IsAbsent returns true if the value carries no result.
func (v Value) IsAbsent() bool {
	return v.typ == TypeAbsent
}

// AsBool returns the boolean value. Panics if not a bool.
func (v Value) AsBool() bool {
	if v.typ != TypeBool {
		panic(fmt.Sprintf("AsBool called on %s value", v.typ))
	}
	return v.boolVal
}

// AsInt returns the integer value. Panics if not an int.
func (v Value) AsInt() int64 {
	if v.typ != TypeInt {
		panic(fmt.Sprintf("AsInt called on %s value", v.typ))
	}
	return v.intVal
}

// AsList returns the list elements. Panics if not a list.
func (v Value) AsList() []Value {
	if v.typ != TypeList {
		panic(fmt.Sprintf("AsList called on %s value", v.typ))
	}
	return v.listVal
}

// AsNamed returns the name and the argument list of a named result. The
// arguments are a list value, or Absent when the call had none.
func (v Value) AsNamed() (string, Value) {
	if v.typ != TypeNamed {
		panic(fmt.Sprintf("AsNamed called on %s value", v.typ))
	}
	if !v.hasArgs {
		return v.name, Absent
	}
	return v.name, NewList(v.listVal)
}

// AsNumber returns the integer representation of an int or bool
// (false is 0, true is 1).
func (v Value) AsNumber() (int64, bool) {
	switch v.typ {
	case TypeInt:
		return v.intVal, true
	case TypeBool:
		if v.boolVal {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// Truthy returns the boolean coercion used by and, or and not.
func (v Value) Truthy() bool {
	switch v.typ {
	case TypeBool:
		return v.boolVal
	case TypeInt:
		return v.intVal != 0
	case TypeList:
		return len(v.listVal) > 0
	case TypeNamed:
		return true
	default:
		return false
	}
}

// Clone creates a deep copy of the value.
func (v Value) Clone() Value {
	if v.typ != TypeList && v.typ != TypeNamed {
		return v
	}
	if v.listVal == nil {
		return v
	}
	items := make([]Value, len(v.listVal))
	for i, item := range v.listVal {
		items[i] = item.Clone()
	}
	c := v
	c.listVal = items
	return c
}

// Equal tests structural equality. Ints and bools compare by their integer
// representation; any other tag mismatch is unequal.
func (v Value) Equal(other Value) bool {
	if v.typ != other.typ {
		a, aOk := v.AsNumber()
		b, bOk := other.AsNumber()
		return aOk && bOk && a == b
	}
	switch v.typ {
	case TypeAbsent:
		return true
	case TypeBool:
		return v.boolVal == other.boolVal
	case TypeInt:
		return v.intVal == other.intVal
	case TypeList:
		return equalLists(v.listVal, other.listVal)
	case TypeNamed:
		return v.name == other.name && v.hasArgs == other.hasArgs &&
			equalLists(v.listVal, other.listVal)
	}
	return false
}

func equalLists(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// Compare orders two values. Ints and bools are ordered numerically and
// lists lexicographically: the first pair of unequal elements decides, and
// otherwise the shorter list is smaller. Every other combination is a
// TypeError.
func Compare(a, b Value) (int, error) {
	if a.Type() == TypeList && b.Type() == TypeList {
		return compareLists(a.listVal, b.listVal)
	}

	an, aOk := a.AsNumber()
	bn, bOk := b.AsNumber()
	if !aOk || !bOk {
		return 0, NewTypeError(fmt.Sprintf("cannot compare %s and %s", a.Type(), b.Type()))
	}
	switch {
	case an < bn:
		return -1, nil
	case an > bn:
		return 1, nil
	default:
		return 0, nil
	}
}

func compareLists(a, b []Value) (int, error) {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i].Equal(b[i]) {
			continue
		}
		return Compare(a[i], b[i])
	}
	switch {
	case len(a) < len(b):
		return -1, nil
	case len(a) > len(b):
		return 1, nil
	default:
		return 0, nil
	}
}

// String returns a human-readable representation of the value.
func (v Value) String() string {
	switch v.typ {
	case TypeAbsent:
		return "<absent>"
	case TypeBool:
		if v.boolVal {
			return "true"
		}
		return "false"
	case TypeInt:
		return fmt.Sprintf("%d", v.intVal)
	case TypeList:
		return formatList(v.listVal)
	case TypeNamed:
		if !v.hasArgs {
			return v.name + "()"
		}
		s := formatList(v.listVal)
		return v.name + "(" + s[1:len(s)-1] + ")"
	}
	return "<unknown>"
}

func formatList(items []Value) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = item.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// MarshalJSON encodes absent as null, named results as
// {"name": ..., "args": [...] | null}.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.typ {
	case TypeAbsent:
		return []byte("null"), nil
	case TypeBool:
		return json.Marshal(v.boolVal)
	case TypeInt:
		return json.Marshal(v.intVal)
	case TypeList:
		items := make([]json.RawMessage, len(v.listVal))
		for i, item := range v.listVal {
			b, err := item.MarshalJSON()
			if err != nil {
				return nil, err
			}
			items[i] = b
		}
		return json.Marshal(items)
	case TypeNamed:
		_, args := v.AsNamed()
		argBytes, err := args.MarshalJSON()
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]json.RawMessage{
			"name": mustMarshal(v.name),
			"args": argBytes,
		})
	}
	return nil, fmt.Errorf("cannot marshal unknown type %d", v.typ)
}

func mustMarshal(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

// ToGoValue converts a Value to plain Go data suitable for JSON, YAML or
// protobuf Struct encoding.
func (v Value) ToGoValue() interface{} {
	switch v.typ {
	case TypeBool:
		return v.boolVal
	case TypeInt:
		return v.intVal
	case TypeList:
		result := make([]interface{}, len(v.listVal))
		for i, item := range v.listVal {
			result[i] = item.ToGoValue()
		}
		return result
	case TypeNamed:
		_, args := v.AsNamed()
		return map[string]interface{}{"name": v.name, "args": args.ToGoValue()}
	}
	return nil
}

// ValueFromGo converts decoded YAML or JSON data into a Value. Strings, maps
// other than named results, and non-integral numbers are rejected.
func ValueFromGo(v interface{}) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Absent, nil
	case bool:
		return NewBool(val), nil
	case int:
		return NewInt(int64(val)), nil
	case int64:
		return NewInt(val), nil
	case uint64:
		if val > 1<<63-1 {
			return Absent, NewOverflowError(fmt.Sprintf("integer %d out of range", val))
		}
		return NewInt(int64(val)), nil
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return NewInt(n), nil
		}
		f, err := val.Float64()
		if err != nil {
			return Absent, NewOverflowError(fmt.Sprintf("number %s out of range", val))
		}
		return ValueFromGo(f)
	case float64:
		if val < -(1<<63) || val >= 1<<63 {
			return Absent, NewOverflowError(fmt.Sprintf("number %v out of range", val))
		}
		if val != float64(int64(val)) {
			return Absent, NewTypeError(fmt.Sprintf("non-integral number %v", val))
		}
		return NewInt(int64(val)), nil
	case []interface{}:
		items := make([]Value, len(val))
		for i, item := range val {
			iv, err := ValueFromGo(item)
			if err != nil {
				return Absent, err
			}
			items[i] = iv
		}
		return NewList(items), nil
	case map[string]interface{}:
		name, ok := val["name"].(string)
		if !ok || len(val) > 2 {
			keys := make([]string, 0, len(val))
			for k := range val {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			return Absent, NewTypeError(fmt.Sprintf("unsupported map with keys %v", keys))
		}
		args, err := ValueFromGo(val["args"])
		if err != nil {
			return Absent, err
		}
		if args.typ != TypeList && args.typ != TypeAbsent {
			return Absent, NewTypeError("named result args must be a list")
		}
		return NewNamed(name, args), nil
	default:
		return Absent, NewTypeError(fmt.Sprintf("unsupported value type %T", v))
	}
}
