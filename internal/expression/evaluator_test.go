package expression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tokenflow/internal/ir"
)

func TestEvaluateBoolContains(t *testing.T) {
	e := NewEvaluator()

	tests := []struct {
		str      string
		expected bool
	}{
		{"a", true},
		{"a,b", true},
		{"b", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.str, func(t *testing.T) {
			got, err := e.EvaluateBool(`= str contains "a"`, ir.IRObject{"str": ir.IRString(tt.str)})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestEvaluateBoolWithoutPrefix(t *testing.T) {
	e := NewEvaluator()

	got, err := e.EvaluateBool("x > 5", ir.IRObject{"x": ir.IRInt(7)})
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEvaluateBoolMissingVariable(t *testing.T) {
	e := NewEvaluator()

	_, err := e.EvaluateBool("nonexisting_variable", ir.IRObject{})
	require.Error(t, err)
	assert.True(t, IsEvalError(err))
	assert.Contains(t, err.Error(), "expected result to be a boolean, but was null")
}

func TestEvaluateBoolTypeMismatch(t *testing.T) {
	e := NewEvaluator()

	_, err := e.EvaluateBool(`= "yes"`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "but was a string")
}

func TestEvaluateInvalidSyntax(t *testing.T) {
	e := NewEvaluator()

	_, err := e.EvaluateBool("= x >", ir.IRObject{"x": ir.IRInt(1)})
	require.Error(t, err)
	assert.True(t, IsEvalError(err))
	assert.Contains(t, err.Error(), "invalid expression")
}

func TestEvaluateStringStaticValue(t *testing.T) {
	e := NewEvaluator()

	got, err := e.EvaluateString("payment", nil)
	require.NoError(t, err)
	assert.Equal(t, "payment", got)
	assert.Equal(t, 0, e.Cached(), "static values are never compiled")
}

func TestEvaluateStringExpression(t *testing.T) {
	e := NewEvaluator()

	got, err := e.EvaluateString(`= "job-" + kind`, ir.IRObject{"kind": ir.IRString("ship")})
	require.NoError(t, err)
	assert.Equal(t, "job-ship", got)

	_, err = e.EvaluateString("= missing", ir.IRObject{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected result to be a string, but was null")
}

func TestEvaluateConvertsResults(t *testing.T) {
	e := NewEvaluator()

	v, err := e.Evaluate("= [n, n * 2]", ir.IRObject{"n": ir.IRInt(21)})
	require.NoError(t, err)
	assert.Equal(t, ir.IRArray{ir.IRInt(21), ir.IRInt(42)}, v)

	_, err = e.Evaluate("= 1.5", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported result")
}

func TestEvaluatorCachesPrograms(t *testing.T) {
	e := NewEvaluator(WithCacheCapacity(2))

	for i := 0; i < 3; i++ {
		_, err := e.EvaluateBool("= flag", ir.IRObject{"flag": ir.IRBool(true)})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, e.Cached())

	_, _ = e.EvaluateBool("= a", nil)
	_, _ = e.EvaluateBool("= b", nil)
	assert.Equal(t, 2, e.Cached(), "capacity bounds the cache")
}

func TestNowIsDisabled(t *testing.T) {
	e := NewEvaluator()

	_, err := e.Evaluate("= now()", nil)
	require.Error(t, err)
}

func TestCheck(t *testing.T) {
	assert.NoError(t, Check("static-type"))
	assert.NoError(t, Check("= kind + \"-job\""))
	assert.True(t, IsEvalError(Check("= kind +")))
	assert.Error(t, Check("="))

	assert.NoError(t, CheckCondition("x > 1"))
	assert.NoError(t, CheckCondition("= x > 1"))
	assert.True(t, IsEvalError(CheckCondition("x >")))
}
