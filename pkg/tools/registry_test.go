package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldforge/shrimp/pkg/tools/common"
)

type fakeTool struct {
	name string
	vis  *common.Visibility
}

func (f *fakeTool) Name() string        { return f.name }
func (f *fakeTool) Description() string { return "fake" }
func (f *fakeTool) Parameters() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}
func (f *fakeTool) Execute(ctx context.Context, args map[string]any) *common.ToolResult {
	return common.NewToolResult("ran " + f.name)
}
func (f *fakeTool) Visibility() common.Visibility {
	if f.vis == nil {
		return common.TeammateOK
	}
	return *f.vis
}

func leadOnly() *common.Visibility { v := common.LeadOnly; return &v }

func TestScopedLeadSeesEverything(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{name: "bash"})
	r.Register(&fakeTool{name: "TeamCreate", vis: leadOnly()})

	names := r.Scoped(common.LeadOnly)
	assert.ElementsMatch(t, []string{"bash", "TeamCreate"}, names)
}

func TestScopedTeammateExcludesLeadOnly(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{name: "bash"})
	r.Register(&fakeTool{name: "TeamCreate", vis: leadOnly()})

	names := r.Scoped(common.TeammateOK)
	assert.Equal(t, []string{"bash"}, names)
}

func TestScopedSubagentExcludesLeadOnlyAndTask(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{name: "bash"})
	r.Register(&fakeTool{name: "Task"})
	r.Register(&fakeTool{name: "TeamCreate", vis: leadOnly()})

	names := r.Scoped(common.SubagentFiltered)
	assert.Equal(t, []string{"bash"}, names)
}

func TestExecuteRejectsToolOutsideScope(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{name: "TeamCreate", vis: leadOnly()})

	out, isErr := r.Execute(context.Background(), common.TeammateOK, "TeamCreate", nil)
	assert.True(t, isErr)
	assert.Contains(t, out, "not available")
}

func TestExecuteRunsAllowedTool(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{name: "bash"})

	out, isErr := r.Execute(context.Background(), common.TeammateOK, "bash", nil)
	require.False(t, isErr)
	assert.Equal(t, "ran bash", out)
}

func TestExecuteUnknownTool(t *testing.T) {
	r := NewRegistry()
	out, isErr := r.Execute(context.Background(), common.LeadOnly, "nope", nil)
	assert.True(t, isErr)
	assert.Contains(t, out, "unknown tool")
}

func TestDefinitionsPreservesRequestedOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{name: "zzz"})
	r.Register(&fakeTool{name: "aaa"})

	defs := r.Definitions([]string{"zzz", "aaa"})
	require.Len(t, defs, 2)
	assert.Equal(t, "zzz", defs[0].Name)
	assert.Equal(t, "aaa", defs[1].Name)
}

func TestExecutorForBindsScope(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{name: "bash"})
	r.Register(&fakeTool{name: "TeamCreate", vis: leadOnly()})

	lead := ExecutorFor{Registry: r, Scope: common.LeadOnly}
	assert.Len(t, lead.Definitions(), 2)

	teammate := ExecutorFor{Registry: r, Scope: common.TeammateOK}
	assert.Len(t, teammate.Definitions(), 1)
}
