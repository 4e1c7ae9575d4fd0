package cel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvaluator(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)
	assert.NotNil(t, eval)
}

func TestValidateExpression(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	tests := []struct {
		name      string
		expr      string
		wantError bool
	}{
		{
			name: "field access",
			expr: `payload.user`,
		},
		{
			name: "nested field",
			expr: `payload.customer.tier`,
		},
		{
			name: "conditional",
			expr: `has(payload.user) ? payload.user : "anonymous"`,
		},
		{
			name: "topic variable",
			expr: `topic + ":" + string(payload.id)`,
		},
		{
			name:      "invalid syntax",
			expr:      `payload.user ==`,
			wantError: true,
		},
		{
			name:      "undefined variable",
			expr:      `sourceData.name`,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eval.ValidateExpression(tt.expr)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProgramEvaluate(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	ctx := context.Background()
	payload := map[string]interface{}{
		"user":     "alice",
		"customer": map[string]interface{}{"tier": "gold"},
	}

	prog, err := eval.CompileExpression(`payload.customer.tier`)
	require.NoError(t, err)
	assert.Equal(t, `payload.customer.tier`, prog.Expression())

	value, err := prog.Evaluate(ctx, payload, "orders")
	require.NoError(t, err)
	assert.Equal(t, "gold", value)

	prog, err = eval.CompileExpression(`topic + "/" + payload.user`)
	require.NoError(t, err)
	value, err = prog.Evaluate(ctx, payload, "orders")
	require.NoError(t, err)
	assert.Equal(t, "orders/alice", value)

	prog, err = eval.CompileExpression(`payload.missing`)
	require.NoError(t, err)
	_, err = prog.Evaluate(ctx, payload, "orders")
	assert.Error(t, err)

	_, err = eval.CompileExpression(`payload.`)
	assert.Error(t, err)
}
