// Package subagenttool implements the Task tool: spawn a nested AgentLoop
// that runs synchronously to completion and returns its final assistant
// text. A subagent's tool calls never append to the caller's own
// transcript — only the returned summary does.
package subagenttool

import (
	"context"
	"fmt"

	"github.com/coldforge/shrimp/pkg/agent"
	"github.com/coldforge/shrimp/pkg/background"
	"github.com/coldforge/shrimp/pkg/providers"
	"github.com/coldforge/shrimp/pkg/tools/common"
)

// readOnlyAgentTypes may not call a mutating tool (write_file, edit_file,
// bash, claim_task, TaskUpdate, SendMessage, TeamCreate, ...); explore and
// plan exist to investigate and propose, not to change state.
var readOnlyAgentTypes = map[string]bool{"explore": true, "plan": true}

var mutatingTools = map[string]bool{
	"write_file": true, "edit_file": true, "bash": true, "claim_task": true,
	"TaskCreate": true, "TaskUpdate": true, "SendMessage": true,
	"TeamCreate": true, "TeamDelete": true,
}

// ToolExecutor is the subagent-scoped registry surface.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, input map[string]any) (string, bool)
}

// ToolDefiner supplies subagent-scoped tool definitions.
type ToolDefiner interface {
	Definitions() []providers.Tool
}

type guardedExecutor struct {
	inner    ToolExecutor
	readOnly bool
}

func (g guardedExecutor) Execute(ctx context.Context, name string, input map[string]any) (string, bool) {
	if g.readOnly && mutatingTools[name] {
		return fmt.Sprintf("Error: %q is not available to a read-only subagent", name), true
	}
	return g.inner.Execute(ctx, name, input)
}

type Tool struct {
	Client  providers.LLMClient
	Model   string
	Tools   ToolExecutor
	ToolDef ToolDefiner
	Bg      *background.Executor
	MaxTok  int
}

func (t *Tool) Name() string { return "Task" }
func (t *Tool) Description() string {
	return "Run a subagent (explore, code, or plan) on a self-contained prompt and return its final result."
}
func (t *Tool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"agent_type": map[string]any{"type": "string", "enum": []string{"explore", "code", "plan"}},
			"prompt":     map[string]any{"type": "string"},
		},
		"required": []string{"agent_type", "prompt"},
	}
}

func (t *Tool) Execute(ctx context.Context, args map[string]any) *common.ToolResult {
	agentType, _ := args["agent_type"].(string)
	prompt, _ := args["prompt"].(string)
	if prompt == "" {
		return common.ErrorResult("prompt is required")
	}

	cm := agent.NewContextManager("", t.Client, t.Model, 200000, agent.DefaultMaxOutput)
	loop := &agent.Loop{
		Client:  t.Client,
		System:  fmt.Sprintf("You are a %s subagent. Complete the task and report your result.", agentType),
		Tools:   guardedExecutor{inner: t.Tools, readOnly: readOnlyAgentTypes[agentType]},
		ToolDef: t.ToolDef,
		CM:      cm,
		Bg:      t.Bg,
		MaxTok:  t.MaxTok,
	}

	messages, err := loop.Run(ctx, nil, prompt)
	if err != nil {
		return common.ErrorResult(err.Error())
	}

	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m.Role != "assistant" {
			continue
		}
		return common.NewToolResult(messageText(m))
	}
	return common.NewToolResult("")
}

func messageText(m providers.Message) string {
	if !m.IsBlock {
		return m.Text
	}
	var out string
	for _, b := range m.Blocks {
		if tb, ok := b.(providers.TextBlock); ok {
			out += tb.Text
		}
	}
	return out
}
