package story

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// VarOp is an operation applied by a VariableNode.
type VarOp string

const (
	VarSet      VarOp = "Set"
	VarAdd      VarOp = "Add"
	VarSubtract VarOp = "Subtract"
	VarMultiply VarOp = "Multiply"
	VarDivide   VarOp = "Divide"
	VarToggle   VarOp = "Toggle"
	VarAppend   VarOp = "Append"
	VarRandom   VarOp = "Random"
)

var varOps = map[string]VarOp{
	"set":      VarSet,
	"add":      VarAdd,
	"subtract": VarSubtract,
	"multiply": VarMultiply,
	"divide":   VarDivide,
	"toggle":   VarToggle,
	"append":   VarAppend,
	"random":   VarRandom,
}

func parseVarOp(s string) VarOp {
	if op, ok := varOps[strings.ToLower(strings.TrimSpace(s))]; ok {
		return op
	}
	return VarOp(s)
}

// VariableOperation mutates one variable. Value may reference another
// variable as "$name"; Random expects "min,max".
type VariableOperation struct {
	Variable  string
	Operation VarOp
	Value     string
}

// Apply performs the operation on env. Operations that cannot apply (a
// missing reference, division by zero, a bad range) leave env unchanged.
func (o VariableOperation) Apply(env *Environment) {
	cur, exists := env.Get(o.Variable)

	switch o.Operation {
	case VarToggle:
		env.Set(o.Variable, BoolValue(!(exists && cur.Truthy())))
		return
	case VarRandom:
		lo, hi, ok := parseRange(o.Value)
		if !ok {
			return
		}
		f := lo + env.Rand().Float64()*(hi-lo)
		if exists && cur.Type() == TypeInt {
			env.Set(o.Variable, IntValue(int64(f)))
			return
		}
		env.Set(o.Variable, FloatValue(f))
		return
	}

	operand, ok := env.Resolve(o.Value)
	if !ok {
		return
	}

	switch o.Operation {
	case VarSet:
		if exists {
			if conv, cok := operand.Convert(cur.Type()); cok {
				operand = conv
			}
		}
		env.Set(o.Variable, operand)
	case VarAppend:
		prefix := ""
		if exists {
			prefix = cur.String()
		}
		env.Set(o.Variable, StringValue(prefix+operand.String()))
	case VarAdd, VarSubtract, VarMultiply, VarDivide:
		if !exists {
			cur = IntValue(0)
			if operand.Type() == TypeFloat {
				cur = FloatValue(0)
			}
		}
		if v, ok := arithmetic(o.Operation, cur, operand); ok {
			env.Set(o.Variable, v)
		}
	}
}

// arithmetic keeps the target's type: int targets stay int when the
// operand is integral, everything else is float.
func arithmetic(op VarOp, cur, operand Value) (Value, bool) {
	a, aok := cur.Number()
	b, bok := operand.Number()
	if !aok || !bok {
		return Value{}, false
	}
	if op == VarDivide && b == 0 {
		return Value{}, false
	}

	if cur.Type() == TypeInt && operand.Type() != TypeFloat && b == math.Trunc(b) {
		x, y := cur.Int(), int64(b)
		if op == VarDivide && y == 0 {
			return Value{}, false
		}
		switch op {
		case VarAdd:
			return IntValue(x + y), true
		case VarSubtract:
			return IntValue(x - y), true
		case VarMultiply:
			return IntValue(x * y), true
		case VarDivide:
			return IntValue(x / y), true
		}
	}

	var r float64
	switch op {
	case VarAdd:
		r = a + b
	case VarSubtract:
		r = a - b
	case VarMultiply:
		r = a * b
	case VarDivide:
		r = a / b
	}
	if cur.Type() == TypeInt {
		return IntValue(int64(r)), true
	}
	return FloatValue(r), true
}

func parseRange(s string) (float64, float64, bool) {
	lo, hi, found := strings.Cut(s, ",")
	if !found {
		return 0, 0, false
	}
	a, err := strconv.ParseFloat(strings.TrimSpace(lo), 64)
	if err != nil {
		return 0, 0, false
	}
	b, err := strconv.ParseFloat(strings.TrimSpace(hi), 64)
	if err != nil {
		return 0, 0, false
	}
	if b < a {
		a, b = b, a
	}
	return a, b, true
}

// VariableNode applies its operations in order and continues.
type VariableNode struct {
	NodeBase
	Operations []VariableOperation
}

func (n *VariableNode) Kind() Kind { return KindVariable }

func (n *VariableNode) SetupPorts() { n.standardPorts() }

func (n *VariableNode) Execute(env *Environment) Result {
	for _, op := range n.Operations {
		op.Apply(env)
	}
	return Continue(PortOutput)
}

func (n *VariableNode) Validate() []string {
	var errs []string
	if len(n.Operations) == 0 {
		errs = append(errs, fmt.Sprintf("Variable node %s has no operations", n.DisplayName()))
	}
	for i, op := range n.Operations {
		if strings.TrimSpace(op.Variable) == "" {
			errs = append(errs, fmt.Sprintf("Variable node %s operation %d has no variable", n.DisplayName(), i))
		}
		if _, ok := varOps[strings.ToLower(string(op.Operation))]; !ok {
			errs = append(errs, fmt.Sprintf("Variable node %s operation %d has unknown operation %q", n.DisplayName(), i, op.Operation))
		}
		if op.Operation == VarRandom {
			if _, _, ok := parseRange(op.Value); !ok {
				errs = append(errs, fmt.Sprintf("Variable node %s operation %d has invalid range %q", n.DisplayName(), i, op.Value))
			}
		}
	}
	return errs
}

func (n *VariableNode) SerializationData() map[string]any {
	ops := make([]any, 0, len(n.Operations))
	for _, op := range n.Operations {
		ops = append(ops, map[string]any{
			"variable":  op.Variable,
			"operation": string(op.Operation),
			"value":     op.Value,
		})
	}
	return map[string]any{"operations": ops}
}

func (n *VariableNode) LoadSerializationData(data map[string]any) {
	n.Operations = nil
	for _, m := range getMaps(data, "operations") {
		n.Operations = append(n.Operations, VariableOperation{
			Variable:  getString(m, "variable"),
			Operation: parseVarOp(getString(m, "operation")),
			Value:     getString(m, "value"),
		})
	}
}
