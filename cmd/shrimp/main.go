// Command shrimp runs the lead agent loop against a workspace: a single
// cobra CLI entry point that wires ContextManager, TaskBoard,
// BackgroundExecutor, MessageBus, TeammateManager, ToolRegistry, and
// AgentLoop together per the config file/environment.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/coldforge/shrimp/pkg/agent"
	"github.com/coldforge/shrimp/pkg/background"
	"github.com/coldforge/shrimp/pkg/config"
	"github.com/coldforge/shrimp/pkg/logger"
	"github.com/coldforge/shrimp/pkg/providers/factory"
	"github.com/coldforge/shrimp/pkg/taskboard"
	"github.com/coldforge/shrimp/pkg/teambus"
	"github.com/coldforge/shrimp/pkg/teammate"
	"github.com/coldforge/shrimp/pkg/tools"
	"github.com/coldforge/shrimp/pkg/tools/bash"
	"github.com/coldforge/shrimp/pkg/tools/common"
	"github.com/coldforge/shrimp/pkg/tools/compact"
	"github.com/coldforge/shrimp/pkg/tools/edit_file"
	"github.com/coldforge/shrimp/pkg/tools/idle"
	"github.com/coldforge/shrimp/pkg/tools/list_dir"
	"github.com/coldforge/shrimp/pkg/tools/read_file"
	"github.com/coldforge/shrimp/pkg/tools/skill"
	"github.com/coldforge/shrimp/pkg/tools/subagenttool"
	"github.com/coldforge/shrimp/pkg/tools/tasktools"
	"github.com/coldforge/shrimp/pkg/tools/teamtools"
	"github.com/coldforge/shrimp/pkg/tools/todo"
	"github.com/coldforge/shrimp/pkg/tools/write_file"
)

func main() {
	root := &cobra.Command{
		Use:   "shrimp",
		Short: "A tool-using coding agent harness",
	}
	root.AddCommand(runCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var prompt string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single prompt to completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := config.ResolveRuntimePaths()
			cfg, err := config.LoadConfig(paths.ConfigPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			client, err := factory.CreateProvider(cfg)
			if err != nil {
				return fmt.Errorf("create provider: %w", err)
			}

			workspace := cfg.Agent.Workspace
			restrict := cfg.Agent.RestrictToWorkspace
			registry := tools.NewRegistry()
			bg := background.NewExecutor(workspace, 4)
			listID := taskboard.ResolveListID(cfg.Agent.TaskListID, "")
			board, err := taskboard.NewBoard(taskboard.BoardDir(filepath.Join(workspace, ".tasks"), listID))
			if err != nil {
				return fmt.Errorf("open task board: %w", err)
			}
			bus, err := teambus.NewBus(filepath.Join(workspace, ".team"))
			if err != nil {
				return fmt.Errorf("open message bus: %w", err)
			}

			cm := agent.NewContextManager(workspace, client, cfg.LLM.Model, cfg.LLM.ContextWindow, cfg.LLM.MaxOutput)

			registry.Register(read_file.NewReadFileTool(workspace, restrict))
			registry.Register(write_file.NewWriteFileTool(workspace, restrict))
			registry.Register(edit_file.NewEditFileTool(workspace, restrict))
			registry.Register(list_dir.NewListDirTool(workspace, restrict))
			registry.Register(bash.New(bg))
			registry.Register(compact.New())
			registry.Register(idle.New())
			registry.Register(skill.New(workspace))
			todoTool := todo.New()
			registry.Register(todoTool)
			registry.Register(&tasktools.CreateTool{Board: board})
			registry.Register(&tasktools.GetTool{Board: board})
			registry.Register(&tasktools.UpdateTool{Board: board, DefaultOwner: cfg.Agent.DefaultAgentName})
			registry.Register(&tasktools.ListTool{Board: board})
			registry.Register(&tasktools.ClaimTool{Board: board, Owner: cfg.Agent.DefaultAgentName})
			registry.Register(&tasktools.OutputTool{Bg: bg})
			registry.Register(&tasktools.StopTool{Bg: bg})
			registry.Register(&teamtools.SendMessageTool{Bus: bus, Sender: cfg.Agent.DefaultAgentName})

			subagentExec := tools.ExecutorFor{Registry: registry, Scope: common.SubagentFiltered}
			registry.Register(&subagenttool.Tool{
				Client: client, Model: cfg.LLM.Model, Tools: subagentExec, ToolDef: subagentExec,
				Bg: bg, MaxTok: cfg.LLM.MaxOutput,
			})

			teamExec := tools.TeammateExecutor{Registry: registry, Scope: common.TeammateOK}
			teamMgr := teammate.NewManager(client, cfg.LLM.Model, teamExec, bus, board, cm, workspace, cfg.Agent.DefaultAgentName)
			registry.Register(&teamtools.CreateTool{Manager: teamMgr})
			registry.Register(&teamtools.DeleteTool{Manager: teamMgr})

			leadExec := tools.ExecutorFor{Registry: registry, Scope: common.LeadOnly}
			loop := &agent.Loop{
				Client:  client,
				System:  "You are the lead agent of a coding assistant harness working in " + workspace + ".",
				Tools:   leadExec,
				ToolDef: leadExec,
				CM:      cm,
				Bg:      bg,
				Bus:     bus,
				Self:    cfg.Agent.DefaultAgentName,
				MaxTok:  cfg.LLM.MaxOutput,
				Todos:   todoTool,
			}
			loop.SetTodoWriteEnabled(true)

			if prompt == "" {
				prompt = readStdinPrompt()
			}

			messages, err := loop.Run(context.Background(), nil, prompt)
			if err != nil {
				return err
			}
			logger.InfoCF("shrimp", "turn complete", map[string]any{"messages": len(messages)})
			for _, m := range messages {
				if m.Role == "assistant" && !m.IsBlock {
					fmt.Println(m.Text)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "Prompt to run; reads stdin if omitted")
	return cmd
}

func readStdinPrompt() string {
	scanner := bufio.NewScanner(os.Stdin)
	var out string
	for scanner.Scan() {
		out += scanner.Text() + "\n"
	}
	return out
}
