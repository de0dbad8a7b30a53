// Package compact implements the manual-compaction tool: AgentLoop treats
// its invocation as a trigger to run ContextManager.AutoCompact right
// after the current turn's tool dispatch finishes, so the handler itself
// is a no-op acknowledgment.
package compact

import (
	"context"

	"github.com/coldforge/shrimp/pkg/tools/common"
)

type Tool struct{}

func New() *Tool { return &Tool{} }

func (t *Tool) Name() string        { return "compact" }
func (t *Tool) Description() string { return "Manually compact the conversation to free up context." }
func (t *Tool) Parameters() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}
func (t *Tool) Execute(ctx context.Context, args map[string]any) *common.ToolResult {
	return common.NewToolResult("Compaction scheduled")
}
