package story

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// VarType is the declared type of a story variable.
type VarType int

const (
	TypeFloat VarType = iota
	TypeInt
	TypeBool
	TypeString
)

func (t VarType) String() string {
	switch t {
	case TypeFloat:
		return "float"
	case TypeInt:
		return "int"
	case TypeBool:
		return "bool"
	case TypeString:
		return "string"
	}
	return fmt.Sprintf("VarType(%d)", int(t))
}

// ParseVarType parses a type name as written in graph documents.
func ParseVarType(s string) (VarType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "float":
		return TypeFloat, nil
	case "int":
		return TypeInt, nil
	case "bool":
		return TypeBool, nil
	case "string":
		return TypeString, nil
	}
	return 0, fmt.Errorf("unknown variable type %q", s)
}

// Value is a typed variable value. The zero Value is Float 0.
type Value struct {
	typ VarType
	f   float64
	i   int64
	b   bool
	s   string
}

func FloatValue(f float64) Value { return Value{typ: TypeFloat, f: f} }
func IntValue(i int64) Value { return Value{typ: TypeInt, i: i} }
func BoolValue(b bool) Value { return Value{typ: TypeBool, b: b} }
func StringValue(s string) Value { return Value{typ: TypeString, s: s} }
func (v Value) Type() VarType { return v.typ }

// ParseValue converts text into a Value of the given type.
func ParseValue(t VarType, raw string) (Value, error) {
	text := strings.TrimSpace(raw)
	switch t {
	case TypeFloat:
		if text == "" {
			return FloatValue(0), nil
		}
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parse float %q: %w", text, err)
		}
		return FloatValue(f), nil
	case TypeInt:
		if text == "" {
			return IntValue(0), nil
		}
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			// "3.0" is accepted for int variables
			f, ferr := strconv.ParseFloat(text, 64)
			if ferr != nil {
				return Value{}, fmt.Errorf("parse int %q: %w", text, err)
			}
			return IntValue(int64(f)), nil
		}
		return IntValue(i), nil
	case TypeBool:
		if text == "" {
			return BoolValue(false), nil
		}
		b, err := strconv.ParseBool(text)
		if err != nil {
			return Value{}, fmt.Errorf("parse bool %q: %w", text, err)
		}
		return BoolValue(b), nil
	case TypeString:
		return StringValue(raw), nil
	}
	return Value{}, fmt.Errorf("unknown variable type %v", t)
}

// InferValue guesses the type of a literal: bool, then int, then float,
// falling back to string.
func InferValue(text string) Value {
	trimmed := strings.TrimSpace(text)
	switch strings.ToLower(trimmed) {
	case "true":
		return BoolValue(true)
	case "false":
		return BoolValue(false)
	}
	if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return IntValue(i)
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return FloatValue(f)
	}
	return StringValue(text)
}

// Convert returns v converted to type t. Conversions that cannot succeed
// (e.g. "abc" to int) return the zero value of t and false.
func (v Value) Convert(t VarType) (Value, bool) {
	if v.typ == t {
		return v, true
	}
	switch t {
	case TypeString:
		return StringValue(v.String()), true
	case TypeBool:
		return BoolValue(v.Truthy()), true
	case TypeFloat:
		if n, ok := v.Number(); ok {
			return FloatValue(n), true
		}
		return FloatValue(0), false
	case TypeInt:
		if n, ok := v.Number(); ok {
			return IntValue(int64(n)), true
		}
		return IntValue(0), false
	}
	return Value{}, false
}

// Number coerces v to a float64. Bools map to 0/1. Strings parse as
// numbers, or as 1/0 only for the literals true and false.
func (v Value) Number() (float64, bool) {
	switch v.typ {
	case TypeFloat:
		return v.f, true
	case TypeInt:
		return float64(v.i), true
	case TypeBool:
		if v.b {
			return 1, true
		}
		return 0, true
	case TypeString:
		s := strings.TrimSpace(v.s)
		switch strings.ToLower(s) {
		case "true":
			return 1, true
		case "false":
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// Truthy reports whether v counts as true: non-zero numbers, true bools and
// strings that parse as true or a non-zero number.
func (v Value) Truthy() bool {
	switch v.typ {
	case TypeBool:
		return v.b
	case TypeString:
		n, ok := v.Number()
		return ok && n != 0
	}
	n, _ := v.Number()
	return n != 0
}

// Float returns the float payload, coercing other types.
func (v Value) Float() float64 {
	n, _ := v.Number()
	return n
}

// Int returns the int payload, coercing other types.
func (v Value) Int() int64 {
	if v.typ == TypeInt {
		return v.i
	}
	n, _ := v.Number()
	return int64(n)
}

// Bool returns the bool payload, coercing other types via Truthy.
func (v Value) Bool() bool { return v.Truthy() }

// String returns the canonical text form, as stored in documents.
func (v Value) String() string {
	switch v.typ {
	case TypeFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case TypeInt:
		return strconv.FormatInt(v.i, 10)
	case TypeBool:
		return strconv.FormatBool(v.b)
	case TypeString:
		return v.s
	}
	return ""
}

// Equal reports whether two values have the same type and payload.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ {
		return false
	}
	switch v.typ {
	case TypeFloat:
		return v.f == o.f
	case TypeInt:
		return v.i == o.i
	case TypeBool:
		return v.b == o.b
	}
	return v.s == o.s
}

// VariableDecl declares a graph variable and its default.
type VariableDecl struct {
	Name    string
	Type    VarType
	Default Value
}
