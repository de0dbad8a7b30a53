// Package tasktools exposes the taskboard as tool calls: TaskCreate,
// TaskGet, TaskUpdate, TaskList, claim_task, plus the background-job
// inspection pair TaskOutput/TaskStop.
package tasktools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coldforge/shrimp/pkg/background"
	"github.com/coldforge/shrimp/pkg/taskboard"
	"github.com/coldforge/shrimp/pkg/tools/common"
)

func taskJSON(t *taskboard.Task) *common.ToolResult {
	data, err := json.Marshal(t)
	if err != nil {
		return common.ErrorResult(err.Error())
	}
	return common.NewToolResult(string(data))
}

func strArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func strListArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func mapArg(args map[string]any, key string) map[string]any {
	v, _ := args[key].(map[string]any)
	return v
}

// CreateTool implements TaskCreate.
type CreateTool struct{ Board *taskboard.Board }

func (t *CreateTool) Name() string        { return "TaskCreate" }
func (t *CreateTool) Description() string { return "Create a task on the task board." }
func (t *CreateTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"subject":     map[string]any{"type": "string"},
			"description": map[string]any{"type": "string"},
			"active_form": map[string]any{"type": "string"},
			"metadata":    map[string]any{"type": "object"},
		},
		"required": []string{"subject"},
	}
}
func (t *CreateTool) Execute(ctx context.Context, args map[string]any) *common.ToolResult {
	task, err := t.Board.Create(strArg(args, "subject"), strArg(args, "description"), strArg(args, "active_form"), mapArg(args, "metadata"))
	if err != nil {
		return common.ErrorResult(err.Error())
	}
	return taskJSON(task)
}

// GetTool implements TaskGet.
type GetTool struct{ Board *taskboard.Board }

func (t *GetTool) Name() string        { return "TaskGet" }
func (t *GetTool) Description() string { return "Fetch a task by id." }
func (t *GetTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"id": map[string]any{"type": "string"}},
		"required":   []string{"id"},
	}
}
func (t *GetTool) Execute(ctx context.Context, args map[string]any) *common.ToolResult {
	task, err := t.Board.Get(strArg(args, "id"))
	if err != nil {
		return common.ErrorResult(err.Error())
	}
	return taskJSON(task)
}

// UpdateTool implements TaskUpdate.
type UpdateTool struct {
	Board        *taskboard.Board
	DefaultOwner string
}

func (t *UpdateTool) Name() string        { return "TaskUpdate" }
func (t *UpdateTool) Description() string { return "Update a task's fields, status, or dependency edges." }
func (t *UpdateTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id":             map[string]any{"type": "string"},
			"status":         map[string]any{"type": "string", "enum": []string{"pending", "in_progress", "completed", "deleted"}},
			"subject":        map[string]any{"type": "string"},
			"description":    map[string]any{"type": "string"},
			"active_form":    map[string]any{"type": "string"},
			"owner":          map[string]any{"type": "string"},
			"metadata":       map[string]any{"type": "object"},
			"add_blocks":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"add_blocked_by": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []string{"id"},
	}
}
func (t *UpdateTool) Execute(ctx context.Context, args map[string]any) *common.ToolResult {
	opts := taskboard.UpdateOptions{
		Status:       taskboard.Status(strArg(args, "status")),
		Subject:      strArg(args, "subject"),
		Description:  strArg(args, "description"),
		ActiveForm:   strArg(args, "active_form"),
		Owner:        strArg(args, "owner"),
		Metadata:     mapArg(args, "metadata"),
		AddBlocks:    strListArg(args, "add_blocks"),
		AddBlockedBy: strListArg(args, "add_blocked_by"),
		DefaultOwner: t.DefaultOwner,
	}
	task, err := t.Board.Update(strArg(args, "id"), opts)
	if err != nil {
		return common.ErrorResult(err.Error())
	}
	return taskJSON(task)
}

// ListTool implements TaskList.
type ListTool struct{ Board *taskboard.Board }

func (t *ListTool) Name() string        { return "TaskList" }
func (t *ListTool) Description() string { return "List every task on the board, ascending by id." }
func (t *ListTool) Parameters() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}
func (t *ListTool) Execute(ctx context.Context, args map[string]any) *common.ToolResult {
	tasks, err := t.Board.List()
	if err != nil {
		return common.ErrorResult(err.Error())
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return common.ErrorResult(err.Error())
	}
	return common.NewToolResult(string(data))
}

// ClaimTool implements claim_task: atomic owner+in_progress shortcut.
type ClaimTool struct {
	Board *taskboard.Board
	Owner string
}

func (t *ClaimTool) Name() string        { return "claim_task" }
func (t *ClaimTool) Description() string { return "Atomically claim an unowned task as in_progress." }
func (t *ClaimTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"id": map[string]any{"type": "string"}},
		"required":   []string{"id"},
	}
}
func (t *ClaimTool) Execute(ctx context.Context, args map[string]any) *common.ToolResult {
	task, err := t.Board.Claim(strArg(args, "id"), t.Owner)
	if err != nil {
		return common.ErrorResult(err.Error())
	}
	return taskJSON(task)
}

// OutputTool implements TaskOutput: inspect a background job.
type OutputTool struct{ Bg *background.Executor }

func (t *OutputTool) Name() string        { return "TaskOutput" }
func (t *OutputTool) Description() string { return "Fetch a background job's current status and output." }
func (t *OutputTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"task_id": map[string]any{"type": "string"},
			"block":   map[string]any{"type": "boolean"},
		},
		"required": []string{"task_id"},
	}
}
func (t *OutputTool) Visibility() common.Visibility { return common.LeadOnly }

func (t *OutputTool) Execute(ctx context.Context, args map[string]any) *common.ToolResult {
	block, _ := args["block"].(bool)
	job, err := t.Bg.GetOutput(strArg(args, "task_id"), block, 30*time.Second)
	if err != nil {
		return common.ErrorResult(err.Error())
	}
	data, err := json.Marshal(map[string]any{"task_id": job.ID, "status": job.Status, "output": job.Output})
	if err != nil {
		return common.ErrorResult(err.Error())
	}
	return common.NewToolResult(string(data))
}

// StopTool implements TaskStop.
type StopTool struct{ Bg *background.Executor }

func (t *StopTool) Name() string        { return "TaskStop" }
func (t *StopTool) Description() string { return "Stop a running background job." }
func (t *StopTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"task_id": map[string]any{"type": "string"}},
		"required":   []string{"task_id"},
	}
}

func (t *StopTool) Visibility() common.Visibility { return common.LeadOnly }

func (t *StopTool) Execute(ctx context.Context, args map[string]any) *common.ToolResult {
	if err := t.Bg.StopTask(strArg(args, "task_id")); err != nil {
		return common.ErrorResult(err.Error())
	}
	return common.NewToolResult("stopped")
}
