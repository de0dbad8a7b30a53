// Package bash wires the bash tool to the shared background executor: by
// default it blocks for the job's result (the common case a model expects
// from a shell command), but a background=true argument returns the task
// id immediately and lets the job surface later as a notification.
package bash

import (
	"context"
	"fmt"
	"time"

	"github.com/coldforge/shrimp/pkg/background"
	"github.com/coldforge/shrimp/pkg/tools/common"
)

const defaultBlockTimeout = 125 * time.Second

type Tool struct {
	bg *background.Executor
}

func New(bg *background.Executor) *Tool {
	return &Tool{bg: bg}
}

func (t *Tool) Name() string { return "bash" }

func (t *Tool) Description() string {
	return "Run a shell command in the workspace. Set background=true to launch it without waiting and receive its completion later as a task notification."
}

func (t *Tool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "The shell command to run",
			},
			"background": map[string]any{
				"type":        "boolean",
				"description": "Run without waiting for completion",
			},
		},
		"required": []string{"command"},
	}
}

func (t *Tool) Execute(ctx context.Context, args map[string]any) *common.ToolResult {
	command, ok := args["command"].(string)
	if !ok || command == "" {
		return common.ErrorResult("command is required")
	}

	id := t.bg.RunBash(command)

	runInBackground, _ := args["background"].(bool)
	if runInBackground {
		return common.NewToolResult(fmt.Sprintf("Started background task %s", id))
	}

	job, err := t.bg.GetOutput(id, true, defaultBlockTimeout)
	if err != nil {
		return common.ErrorResult(err.Error())
	}
	if job.Status == "error" || job.Status == "timeout" {
		return common.ErrorResult(job.Output)
	}
	return common.NewToolResult(job.Output)
}
