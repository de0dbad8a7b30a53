package teamtools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldforge/shrimp/pkg/agent"
	"github.com/coldforge/shrimp/pkg/providers"
	"github.com/coldforge/shrimp/pkg/taskboard"
	"github.com/coldforge/shrimp/pkg/teambus"
	"github.com/coldforge/shrimp/pkg/teammate"
)

type instantClient struct{}

func (instantClient) Send(ctx context.Context, system string, messages []providers.Message, tools []providers.Tool, maxTokens int) (*providers.Response, error) {
	return &providers.Response{StopReason: "end_turn", Content: []providers.Block{providers.TextBlock{Text: "done"}}}, nil
}

type noopTools struct{}

func (noopTools) Execute(ctx context.Context, caller, name string, input map[string]any) (string, bool) {
	return "", false
}

func newTestManager(t *testing.T) (*teammate.Manager, *teambus.Bus) {
	t.Helper()
	workspace := t.TempDir()
	bus, err := teambus.NewBus(workspace + "/.team")
	require.NoError(t, err)
	board, err := taskboard.NewBoard(taskboard.BoardDir(workspace+"/.tasks", "lead"))
	require.NoError(t, err)
	cm := agent.NewContextManager(workspace, instantClient{}, "test-model", 200000, 8000)
	mgr := teammate.NewManager(instantClient{}, "test-model", noopTools{}, bus, board, cm, workspace, "lead")
	return mgr, bus
}

func TestTeamCreateSpawnsTeammate(t *testing.T) {
	mgr, _ := newTestManager(t)
	tool := &CreateTool{Manager: mgr}

	result := tool.Execute(context.Background(), map[string]any{"name": "worker-1", "prompt": "say hi"})
	require.False(t, result.IsError)
	assert.Contains(t, result.ForLLM, "worker-1")
}

func TestTeamCreateRequiresName(t *testing.T) {
	mgr, _ := newTestManager(t)
	tool := &CreateTool{Manager: mgr}

	result := tool.Execute(context.Background(), map[string]any{"prompt": "say hi"})
	assert.True(t, result.IsError)
}

func TestTeamDeleteRequestsShutdown(t *testing.T) {
	mgr, _ := newTestManager(t)
	create := &CreateTool{Manager: mgr}
	create.Execute(context.Background(), map[string]any{"name": "worker-2", "prompt": "say hi"})
	time.Sleep(10 * time.Millisecond)

	del := &DeleteTool{Manager: mgr}
	result := del.Execute(context.Background(), map[string]any{"name": "worker-2"})
	require.False(t, result.IsError)
}

func TestSendMessageBroadcast(t *testing.T) {
	_, bus := newTestManager(t)
	tool := &SendMessageTool{Bus: bus, Sender: "lead"}

	result := tool.Execute(context.Background(), map[string]any{"content": "stand by", "broadcast": true})
	require.False(t, result.IsError)
	assert.Contains(t, result.ForLLM, "Broadcast")
}

func TestSendMessageRequiresContent(t *testing.T) {
	_, bus := newTestManager(t)
	tool := &SendMessageTool{Bus: bus, Sender: "lead"}

	result := tool.Execute(context.Background(), map[string]any{})
	assert.True(t, result.IsError)
}
