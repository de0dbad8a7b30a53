// Package todo implements TodoWrite: an in-memory scratch checklist the
// model maintains for its own plan tracking. AgentLoop watches for this
// tool's name to reset its rounds_without_todo reminder counter; the
// handler itself just replaces the stored list and echoes it back.
package todo

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/coldforge/shrimp/pkg/tools/common"
)

type Item struct {
	Content    string `json:"content"`
	Status     string `json:"status"` // pending | in_progress | completed
	ActiveForm string `json:"active_form,omitempty"`
}

type Tool struct {
	mu    sync.Mutex
	items []Item
}

func New() *Tool { return &Tool{} }

func (t *Tool) Name() string        { return "TodoWrite" }
func (t *Tool) Description() string { return "Replace the current todo list." }
func (t *Tool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"items": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"content":     map[string]any{"type": "string"},
						"status":      map[string]any{"type": "string", "enum": []string{"pending", "in_progress", "completed"}},
						"active_form": map[string]any{"type": "string"},
					},
					"required": []string{"content", "status"},
				},
			},
		},
		"required": []string{"items"},
	}
}

func (t *Tool) Execute(ctx context.Context, args map[string]any) *common.ToolResult {
	raw, ok := args["items"].([]any)
	if !ok {
		return common.ErrorResult("items is required")
	}
	items := make([]Item, 0, len(raw))
	for _, v := range raw {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		content, _ := m["content"].(string)
		status, _ := m["status"].(string)
		activeForm, _ := m["active_form"].(string)
		items = append(items, Item{Content: content, Status: status, ActiveForm: activeForm})
	}

	t.mu.Lock()
	t.items = items
	t.mu.Unlock()

	data, err := json.Marshal(items)
	if err != nil {
		return common.ErrorResult(err.Error())
	}
	return common.NewToolResult(string(data))
}

// HasOpenItems reports whether the stored list has at least one
// non-completed entry, the condition AgentLoop's reminder policy gates on.
func (t *Tool) HasOpenItems() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, it := range t.items {
		if it.Status != "completed" {
			return true
		}
	}
	return false
}
