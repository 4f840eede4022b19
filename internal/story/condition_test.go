package story

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConditionNumericComparison(t *testing.T) {
	env := testEnv(VariableDecl{Name: "hp", Type: TypeFloat, Default: FloatValue(5)})

	assert.True(t, Condition{Variable: "hp", Operator: OpGreaterThan, Value: "3"}.Evaluate(env))
	assert.True(t, Condition{Variable: "hp", Operator: OpEquals, Value: "5.0000001"}.Evaluate(env))
	assert.False(t, Condition{Variable: "hp", Operator: OpNotEquals, Value: "5.0000001"}.Evaluate(env))
	assert.True(t, Condition{Variable: "hp", Operator: OpLessOrEqual, Value: "5"}.Evaluate(env))
	assert.False(t, Condition{Variable: "hp", Operator: OpLessThan, Value: "5"}.Evaluate(env))
}

func TestConditionUnsetVariableIsFalse(t *testing.T) {
	env := testEnv()
	for _, op := range []Operator{
		OpEquals, OpNotEquals, OpGreaterThan, OpLessThan,
		OpGreaterOrEqual, OpLessOrEqual, OpIsTrue, OpIsFalse,
	} {
		assert.False(t, Condition{Variable: "ghost", Operator: op, Value: "0"}.Evaluate(env), op)
	}
}

func TestConditionStringsAndReferences(t *testing.T) {
	env := testEnv(
		VariableDecl{Name: "name", Type: TypeString, Default: StringValue("Ann")},
		VariableDecl{Name: "gold", Type: TypeInt, Default: IntValue(4)},
		VariableDecl{Name: "price", Type: TypeInt, Default: IntValue(4)},
	)

	assert.True(t, Condition{Variable: "name", Operator: OpEquals, Value: "Ann"}.Evaluate(env))
	assert.True(t, Condition{Variable: "name", Operator: OpNotEquals, Value: "Bob"}.Evaluate(env))
	assert.False(t, Condition{Variable: "name", Operator: OpGreaterThan, Value: "Bob"}.Evaluate(env))
	assert.True(t, Condition{Variable: "gold", Operator: OpGreaterOrEqual, Value: "$price"}.Evaluate(env))
	assert.False(t, Condition{Variable: "gold", Operator: OpEquals, Value: "$missing"}.Evaluate(env))
}

func TestConditionStringsAreNotBoolCoerced(t *testing.T) {
	env := testEnv(
		VariableDecl{Name: "code", Type: TypeString, Default: StringValue("t")},
		VariableDecl{Name: "upper", Type: TypeString, Default: StringValue("T")},
		VariableDecl{Name: "flag", Type: TypeString, Default: StringValue("TRUE")},
		VariableDecl{Name: "ten", Type: TypeString, Default: StringValue("10")},
		VariableDecl{Name: "ten2", Type: TypeString, Default: StringValue("10.0")},
	)

	assert.False(t, Condition{Variable: "code", Operator: OpEquals, Value: "T"}.Evaluate(env))
	assert.False(t, Condition{Variable: "code", Operator: OpEquals, Value: "1"}.Evaluate(env))
	assert.False(t, Condition{Variable: "code", Operator: OpEquals, Value: "$upper"}.Evaluate(env))
	assert.True(t, Condition{Variable: "code", Operator: OpNotEquals, Value: "$upper"}.Evaluate(env))
	assert.True(t, Condition{Variable: "code", Operator: OpEquals, Value: "t"}.Evaluate(env))

	assert.True(t, Condition{Variable: "flag", Operator: OpIsTrue}.Evaluate(env))
	assert.False(t, Condition{Variable: "code", Operator: OpIsTrue}.Evaluate(env))

	assert.False(t, Condition{Variable: "ten", Operator: OpEquals, Value: "$ten2"}.Evaluate(env))
	assert.True(t, Condition{Variable: "ten", Operator: OpGreaterOrEqual, Value: "$ten2"}.Evaluate(env))
	assert.True(t, Condition{Variable: "ten", Operator: OpEquals, Value: "10"}.Evaluate(env))
}

func TestConditionSetLogic(t *testing.T) {
	env := testEnv(VariableDecl{Name: "open", Type: TypeBool, Default: BoolValue(true)})
	yes := Condition{Variable: "open", Operator: OpIsTrue}
	no := Condition{Variable: "open", Operator: OpIsFalse}

	assert.True(t, ConditionSet{}.Evaluate(env))
	assert.False(t, ConditionSet{Logic: LogicAnd, Conditions: []Condition{yes, no}}.Evaluate(env))
	assert.True(t, ConditionSet{Logic: LogicOr, Conditions: []Condition{no, yes}}.Evaluate(env))
}

func TestParseOperator(t *testing.T) {
	op, err := ParseOperator(">=")
	assert.NoError(t, err)
	assert.Equal(t, OpGreaterOrEqual, op)

	op, err = ParseOperator("greaterthan")
	assert.NoError(t, err)
	assert.Equal(t, OpGreaterThan, op)

	_, err = ParseOperator("roughly")
	assert.Error(t, err)
}
