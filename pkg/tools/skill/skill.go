// Package skill implements load_skill against a flat directory of static
// markdown files. The skill-file loader's own parsing rules are an
// external-collaborator concern; this handler only resolves a name to a
// file and returns its contents verbatim.
package skill

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/coldforge/shrimp/pkg/tools/common"
	"github.com/coldforge/shrimp/pkg/utils"
)

type Tool struct {
	dir string
}

func New(workspace string) *Tool {
	return &Tool{dir: filepath.Join(workspace, ".skills")}
}

func (t *Tool) Name() string        { return "load_skill" }
func (t *Tool) Description() string { return "Load a named skill's markdown instructions." }
func (t *Tool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"name": map[string]any{"type": "string"}},
		"required":   []string{"name"},
	}
}
func (t *Tool) Execute(ctx context.Context, args map[string]any) *common.ToolResult {
	name, _ := args["name"].(string)
	if err := utils.ValidateSkillIdentifier(name); err != nil {
		return common.ErrorResult(fmt.Sprintf("Error: %v", err))
	}
	path := filepath.Join(t.dir, name+".md")
	data, err := os.ReadFile(path)
	if err != nil {
		return common.ErrorResult(fmt.Sprintf("Error: skill %q not found", name))
	}
	return common.NewToolResult(string(data))
}
