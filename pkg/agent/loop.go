// AgentLoop is the per-turn orchestrator: compress, drain external events,
// call the LLM, dispatch any requested tools, and loop until the model
// stops asking for tools.
package agent

import (
	"context"
	"fmt"

	"github.com/coldforge/shrimp/pkg/background"
	"github.com/coldforge/shrimp/pkg/providers"
	"github.com/coldforge/shrimp/pkg/teambus"
	"github.com/coldforge/shrimp/pkg/utils"
)

// ToolExecutor is the registry surface the loop needs: run a named tool
// call and report whether the result is an error.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, input map[string]any) (result string, isError bool)
}

// ToolDefiner supplies the tool definitions sent to the LLM on each turn.
type ToolDefiner interface {
	Definitions() []providers.Tool
}

// TodoList reports whether the shared TodoWrite tool's list currently has a
// non-completed item, the condition the reminder policy gates on.
type TodoList interface {
	HasOpenItems() bool
}

// Loop drives one conversation for the lead agent: compress -> drain ->
// call LLM -> dispatch tools -> reinject, until the model stops requesting
// tools.
type Loop struct {
	Client  providers.LLMClient
	System  string
	Tools   ToolExecutor
	ToolDef ToolDefiner
	CM      *ContextManager
	Bg      *background.Executor
	Bus     *teambus.Bus
	Self    string // inbox name to drain MessageBus under, e.g. "lead"
	MaxTok  int

	// Todos, when set, gates the rounds_without_todo reminder on whether
	// the list actually has an open item rather than firing unconditionally.
	Todos TodoList

	hasTodoWrite      bool
	roundsWithoutTodo int
}

// SetTodoWriteEnabled turns on the rounds_without_todo reminder policy:
// it only applies when the registry actually exposes a TodoWrite tool.
func (l *Loop) SetTodoWriteEnabled(enabled bool) {
	l.hasTodoWrite = enabled
}

// Run processes prompt to a stop point: a response whose stop reason is
// not "tool_use". It returns the full resulting transcript.
func (l *Loop) Run(ctx context.Context, messages []providers.Message, prompt string) ([]providers.Message, error) {
	if prompt != "" {
		messages = append(messages, providers.NewTextMessage("user", prompt))
	}

	for {
		messages = l.CM.Microcompact(messages)
		if l.CM.ShouldCompact(messages) {
			compacted, err := l.CM.AutoCompact(ctx, messages)
			if err != nil {
				return messages, NewFatalError("auto_compact: %v", err)
			}
			messages = compacted
		}

		injected := l.drainExternalEvents()
		if injected != "" {
			messages = append(messages, providers.NewTextMessage("user", injected))
		}

		defs := l.ToolDef.Definitions()
		resp, err := utils.DoWithRetry(ctx, utils.RetryConfig{
			Timeouts: LLMCallTimeouts,
			Backoffs: LLMCallBackoffs,
		}, func(attemptCtx context.Context) (*providers.Response, error) {
			return l.Client.Send(attemptCtx, l.System, messages, defs, l.MaxTok)
		})
		if err != nil {
			return messages, NewLLMError("llm call failed: %v", err)
		}
		messages = append(messages, providers.NewBlockMessage("assistant", resp.Content...))

		if resp.StopReason != providers.StopReasonToolUse {
			return messages, nil
		}

		wantsCompact := false
		var results []providers.Block
		for _, block := range resp.Content {
			tu, ok := block.(providers.ToolUseBlock)
			if !ok {
				continue
			}

			if l.hasTodoWrite && tu.Name == "TodoWrite" {
				l.roundsWithoutTodo = 0
			}
			if tu.Name == "compact" {
				wantsCompact = true
			}

			out, isErr := l.dispatch(ctx, tu)
			results = append(results, providers.ToolResultBlock{
				ToolUseID: tu.ID,
				Content:   out,
				IsError:   isErr,
			})
		}
		messages = append(messages, providers.NewBlockMessage("user", results...))

		if wantsCompact {
			compacted, err := l.CM.AutoCompact(ctx, messages)
			if err == nil {
				messages = compacted
			}
		}

		if l.hasTodoWrite && (l.Todos == nil || l.Todos.HasOpenItems()) {
			l.roundsWithoutTodo++
			if l.roundsWithoutTodo >= RoundsWithoutTodoLimit {
				// The *next* turn's injected content carries the reminder;
				// prepending it here to the next loop's drain output would
				// require threading state through drainExternalEvents, so
				// instead stash it as a synthetic user message now and let
				// the following turn pick it up as transcript content.
				messages = append(messages, providers.NewTextMessage("user", reminderBlock))
				l.roundsWithoutTodo = 0
			}
		}
	}
}

const reminderBlock = "<reminder>You have pending todo items. Use TodoWrite to keep the list current.</reminder>"

// dispatch runs one tool call and pipes its output through
// handle_large_output before it becomes a ToolResult's content.
func (l *Loop) dispatch(ctx context.Context, tu providers.ToolUseBlock) (string, bool) {
	out, isErr := l.Tools.Execute(ctx, tu.Name, tu.Input)
	if isErr {
		return out, true
	}
	spilled, err := l.CM.HandleLargeOutput(out)
	if err != nil {
		return out, false
	}
	return spilled, false
}

// drainExternalEvents formats BackgroundExecutor notifications and
// MessageBus inbox messages as the synthetic user content spec's §5
// payload shapes describe, concatenated into one injected turn.
func (l *Loop) drainExternalEvents() string {
	var out string

	if l.Bg != nil {
		for _, n := range l.Bg.DrainNotifications() {
			out += fmt.Sprintf(
				"<task-notification>\n  <task-id>%s</task-id>\n  <task-type>%s</task-type>\n  <status>%s</status>\n  <summary>%s</summary>\n  <output-file>%s</output-file>\n</task-notification>\n",
				n.TaskID, n.Kind, n.Status, n.Summary, n.OutputPath,
			)
		}
	}

	if l.Bus != nil && l.Self != "" {
		inbox, err := l.Bus.ReadInbox(l.Self)
		if err == nil {
			for _, msg := range inbox {
				out += fmt.Sprintf(
					`<teammate-message sender="%s" type="%s">%s</teammate-message>`+"\n",
					msg.Sender, msg.Type, msg.Content,
				)
			}
		}
	}

	return out
}
