package todo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasOpenItemsFalseBeforeAnyWrite(t *testing.T) {
	tool := New()
	assert.False(t, tool.HasOpenItems())
}

func TestHasOpenItemsTrueWithPendingItem(t *testing.T) {
	tool := New()
	result := tool.Execute(context.Background(), map[string]any{
		"items": []any{
			map[string]any{"content": "write tests", "status": "pending"},
		},
	})
	require.False(t, result.IsError)
	assert.True(t, tool.HasOpenItems())
}

func TestHasOpenItemsFalseWhenAllCompleted(t *testing.T) {
	tool := New()
	tool.Execute(context.Background(), map[string]any{
		"items": []any{
			map[string]any{"content": "write tests", "status": "completed"},
		},
	})
	assert.False(t, tool.HasOpenItems())
}

func TestExecuteReplacesListWholesale(t *testing.T) {
	tool := New()
	tool.Execute(context.Background(), map[string]any{
		"items": []any{map[string]any{"content": "a", "status": "pending"}},
	})
	tool.Execute(context.Background(), map[string]any{
		"items": []any{map[string]any{"content": "b", "status": "completed"}},
	})
	assert.False(t, tool.HasOpenItems())
}
