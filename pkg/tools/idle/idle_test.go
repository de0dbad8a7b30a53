package idle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdleAcknowledges(t *testing.T) {
	tool := New()
	result := tool.Execute(context.Background(), nil)
	assert.False(t, result.IsError)
	assert.Equal(t, "idle", tool.Name())
}
