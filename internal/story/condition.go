package story

import (
	"fmt"
	"math"
	"strings"
)

// Epsilon is the tolerance used for numeric equality.
const Epsilon = 1e-4

// Operator compares a variable against a value.
type Operator string

const (
	OpEquals         Operator = "Equals"
	OpNotEquals      Operator = "NotEquals"
	OpGreaterThan    Operator = "GreaterThan"
	OpLessThan       Operator = "LessThan"
	OpGreaterOrEqual Operator = "GreaterOrEqual"
	OpLessOrEqual    Operator = "LessOrEqual"
	OpIsTrue         Operator = "IsTrue"
	OpIsFalse        Operator = "IsFalse"
)

var operators = map[string]Operator{
	"equals":         OpEquals,
	"==":             OpEquals,
	"notequals":      OpNotEquals,
	"!=":             OpNotEquals,
	"greaterthan":    OpGreaterThan,
	">":              OpGreaterThan,
	"lessthan":       OpLessThan,
	"<":              OpLessThan,
	"greaterorequal": OpGreaterOrEqual,
	">=":             OpGreaterOrEqual,
	"lessorequal":    OpLessOrEqual,
	"<=":             OpLessOrEqual,
	"istrue":         OpIsTrue,
	"isfalse":        OpIsFalse,
}

// ParseOperator accepts operator names case-insensitively, plus the
// symbolic forms ==, !=, >, <, >=, <=.
func ParseOperator(s string) (Operator, error) {
	if op, ok := operators[strings.ToLower(strings.TrimSpace(s))]; ok {
		return op, nil
	}
	return "", fmt.Errorf("unknown operator %q", s)
}

// Logic combines the results of a condition list.
type Logic string

const (
	LogicAnd Logic = "And"
	LogicOr  Logic = "Or"
)

// Condition is a single "variable operator value" comparison.
type Condition struct {
	Variable string
	Operator Operator
	Value    string
}

// Evaluate checks the condition against env. A condition on a variable that
// is not set is false for every operator.
func (c Condition) Evaluate(env *Environment) bool {
	left, ok := env.Get(c.Variable)
	if !ok {
		return false
	}

	switch c.Operator {
	case OpIsTrue:
		return left.Truthy()
	case OpIsFalse:
		return !left.Truthy()
	}

	right, ok := env.Resolve(c.Value)
	if !ok {
		return false
	}

	if left.Type() == TypeString && right.Type() == TypeString {
		switch c.Operator {
		case OpEquals:
			return left.String() == right.String()
		case OpNotEquals:
			return left.String() != right.String()
		}
	}

	ln, lok := left.Number()
	rn, rok := right.Number()
	if !lok || !rok {
		// String comparison only makes sense for equality.
		switch c.Operator {
		case OpEquals:
			return left.String() == right.String()
		case OpNotEquals:
			return left.String() != right.String()
		}
		return false
	}

	switch c.Operator {
	case OpEquals:
		return math.Abs(ln-rn) < Epsilon
	case OpNotEquals:
		return math.Abs(ln-rn) >= Epsilon
	case OpGreaterThan:
		return ln > rn
	case OpLessThan:
		return ln < rn
	case OpGreaterOrEqual:
		return ln >= rn || math.Abs(ln-rn) < Epsilon
	case OpLessOrEqual:
		return ln <= rn || math.Abs(ln-rn) < Epsilon
	}
	return false
}

// Validate returns authoring problems with the condition.
func (c Condition) Validate() []string {
	var errs []string
	if strings.TrimSpace(c.Variable) == "" {
		errs = append(errs, "condition has no variable")
	}
	if _, err := ParseOperator(string(c.Operator)); err != nil {
		errs = append(errs, err.Error())
	}
	return errs
}

// ConditionSet evaluates a list of conditions with And/Or logic.
type ConditionSet struct {
	Logic      Logic
	Conditions []Condition
}

// Evaluate returns true for an empty set.
func (s ConditionSet) Evaluate(env *Environment) bool {
	if len(s.Conditions) == 0 {
		return true
	}
	if s.Logic == LogicOr {
		for _, c := range s.Conditions {
			if c.Evaluate(env) {
				return true
			}
		}
		return false
	}
	for _, c := range s.Conditions {
		if !c.Evaluate(env) {
			return false
		}
	}
	return true
}

func conditionToData(c Condition) map[string]any {
	return map[string]any{
		"variable": c.Variable,
		"operator": string(c.Operator),
		"value":    c.Value,
	}
}

func conditionFromData(m map[string]any) Condition {
	c := Condition{
		Variable: getString(m, "variable"),
		Value:    getString(m, "value"),
		Operator: OpEquals,
	}
	if op, err := ParseOperator(getString(m, "operator")); err == nil {
		c.Operator = op
	} else if raw := getString(m, "operator"); raw != "" {
		// keep the unknown name so Validate can report it
		c.Operator = Operator(raw)
	}
	return c
}
