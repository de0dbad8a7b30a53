// Package teamtools exposes teammate lifecycle and messaging as tool
// calls: TeamCreate, TeamDelete, SendMessage.
package teamtools

import (
	"context"
	"fmt"

	"github.com/coldforge/shrimp/pkg/teambus"
	"github.com/coldforge/shrimp/pkg/teammate"
	"github.com/coldforge/shrimp/pkg/tools/common"
)

func strArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

// CreateTool implements TeamCreate: spawn a named teammate loop.
type CreateTool struct {
	Manager *teammate.Manager
}

func (t *CreateTool) Name() string        { return "TeamCreate" }
func (t *CreateTool) Description() string { return "Spawn a new teammate worker with a name, role, and initial task prompt." }
func (t *CreateTool) Visibility() common.Visibility { return common.LeadOnly }
func (t *CreateTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":   map[string]any{"type": "string"},
			"role":   map[string]any{"type": "string"},
			"prompt": map[string]any{"type": "string"},
		},
		"required": []string{"name", "prompt"},
	}
}
func (t *CreateTool) Execute(ctx context.Context, args map[string]any) *common.ToolResult {
	name := strArg(args, "name")
	if name == "" {
		return common.ErrorResult("Error: name is required")
	}
	if err := t.Manager.Spawn(name, strArg(args, "role"), strArg(args, "prompt")); err != nil {
		return common.ErrorResult(fmt.Sprintf("Error: %v", err))
	}
	return common.NewToolResult(fmt.Sprintf("Teammate %q spawned", name))
}

// DeleteTool implements TeamDelete: request a teammate's graceful shutdown.
type DeleteTool struct{ Manager *teammate.Manager }

func (t *DeleteTool) Name() string        { return "TeamDelete" }
func (t *DeleteTool) Description() string { return "Request a teammate shut down gracefully." }
func (t *DeleteTool) Visibility() common.Visibility { return common.LeadOnly }
func (t *DeleteTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"name": map[string]any{"type": "string"}},
		"required":   []string{"name"},
	}
}
func (t *DeleteTool) Execute(ctx context.Context, args map[string]any) *common.ToolResult {
	if err := t.Manager.RequestShutdown(strArg(args, "name")); err != nil {
		return common.ErrorResult(fmt.Sprintf("Error: %v", err))
	}
	return common.NewToolResult("Shutdown requested")
}

// SendMessageTool implements SendMessage: post to the shared MessageBus.
type SendMessageTool struct {
	Bus    *teambus.Bus
	Sender string
}

func (t *SendMessageTool) Name() string        { return "SendMessage" }
func (t *SendMessageTool) Description() string { return "Send a message to a teammate by name, or broadcast to the team." }
func (t *SendMessageTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"recipient": map[string]any{"type": "string", "description": "Teammate name, or omit/\"*\" to broadcast"},
			"content":   map[string]any{"type": "string"},
			"broadcast": map[string]any{"type": "boolean"},
		},
		"required": []string{"content"},
	}
}
func (t *SendMessageTool) Execute(ctx context.Context, args map[string]any) *common.ToolResult {
	content := strArg(args, "content")
	if content == "" {
		return common.ErrorResult("Error: content is required")
	}
	broadcast, _ := args["broadcast"].(bool)
	recipient := strArg(args, "recipient")
	if broadcast || recipient == "" || recipient == "*" {
		if err := t.Bus.Send(t.Sender, "", teambus.TypeBroadcast, content, "", nil); err != nil {
			return common.ErrorResult(fmt.Sprintf("Error: %v", err))
		}
		return common.NewToolResult("Broadcast sent")
	}
	if err := t.Bus.Send(t.Sender, recipient, teambus.TypeMessage, content, "", nil); err != nil {
		return common.ErrorResult(fmt.Sprintf("Error: %v", err))
	}
	return common.NewToolResult(fmt.Sprintf("Message sent to %s", recipient))
}
