package story

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVarType(t *testing.T) {
	got, err := ParseVarType(" Bool ")
	require.NoError(t, err)
	assert.Equal(t, TypeBool, got)

	_, err = ParseVarType("vector3")
	assert.Error(t, err)
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		typ  VarType
		raw  string
		want Value
	}{
		{TypeFloat, "2.5", FloatValue(2.5)},
		{TypeFloat, "", FloatValue(0)},
		{TypeInt, " 7 ", IntValue(7)},
		{TypeInt, "3.0", IntValue(3)},
		{TypeBool, "TRUE", BoolValue(true)},
		{TypeString, "  padded  ", StringValue("  padded  ")},
	}
	for _, tt := range tests {
		got, err := ParseValue(tt.typ, tt.raw)
		require.NoError(t, err, "%v %q", tt.typ, tt.raw)
		assert.True(t, tt.want.Equal(got), "%v %q: got %v", tt.typ, tt.raw, got)
	}

	_, err := ParseValue(TypeInt, "many")
	assert.Error(t, err)
}

func TestInferValue(t *testing.T) {
	assert.Equal(t, TypeBool, InferValue("false").Type())
	assert.Equal(t, TypeInt, InferValue("42").Type())
	assert.Equal(t, TypeFloat, InferValue("4.2").Type())
	assert.Equal(t, TypeString, InferValue("forty").Type())
	assert.Equal(t, TypeInt, InferValue("1").Type(), "digits are numbers, not bools")
}

func TestValueCoercion(t *testing.T) {
	n, ok := StringValue("true").Number()
	require.True(t, ok)
	assert.Equal(t, 1.0, n)

	_, ok = StringValue("abc").Number()
	assert.False(t, ok)

	assert.True(t, IntValue(-1).Truthy())
	assert.False(t, FloatValue(0).Truthy())
	assert.False(t, StringValue("no").Truthy())

	v, ok := StringValue("12").Convert(TypeInt)
	require.True(t, ok)
	assert.Equal(t, int64(12), v.Int())

	_, ok = StringValue("x").Convert(TypeFloat)
	assert.False(t, ok)

	assert.Equal(t, "0.1", FloatValue(0.1).String())
	assert.False(t, IntValue(1).Equal(FloatValue(1)))
}
