package bash

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldforge/shrimp/pkg/background"
)

func TestBashRequiresCommand(t *testing.T) {
	tool := New(background.NewExecutor(t.TempDir(), 1))
	result := tool.Execute(context.Background(), map[string]any{})
	assert.True(t, result.IsError)
}

func TestBashBlocksAndReturnsOutput(t *testing.T) {
	tool := New(background.NewExecutor(t.TempDir(), 1))
	result := tool.Execute(context.Background(), map[string]any{"command": "echo hi"})
	require.False(t, result.IsError)
	assert.Contains(t, result.ForLLM, "hi")
}

func TestBashBackgroundReturnsImmediately(t *testing.T) {
	tool := New(background.NewExecutor(t.TempDir(), 1))
	result := tool.Execute(context.Background(), map[string]any{"command": "sleep 1", "background": true})
	require.False(t, result.IsError)
	assert.Contains(t, result.ForLLM, "Started background task")
}
