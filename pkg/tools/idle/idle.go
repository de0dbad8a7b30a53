// Package idle implements the idle tool: an explicit way for a teammate to
// signal it has nothing left to do this turn without ending its tool-use
// streak on plain text. The actual idle/wake cycle lives in
// pkg/teammate; this handler only acknowledges the call.
package idle

import (
	"context"

	"github.com/coldforge/shrimp/pkg/tools/common"
)

type Tool struct{}

func New() *Tool { return &Tool{} }

func (t *Tool) Name() string        { return "idle" }
func (t *Tool) Description() string { return "Signal that there is no more work right now; wait for a message or an unclaimed task." }
func (t *Tool) Parameters() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}
func (t *Tool) Execute(ctx context.Context, args map[string]any) *common.ToolResult {
	return common.NewToolResult("Idling")
}
