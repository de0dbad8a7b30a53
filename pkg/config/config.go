package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v11"

	"github.com/coldforge/shrimp/pkg/utils"
)

// LLMConfig configures the concrete LLMClient adapter.
type LLMConfig struct {
	Model         string `json:"model" label:"Model" env:"SHRIMP_LLM_MODEL"`
	APIKey        string `json:"api_key" label:"API Key" env:"SHRIMP_LLM_API_KEY"`
	BaseURL       string `json:"base_url" label:"Base URL" env:"SHRIMP_LLM_BASE_URL"`
	ContextWindow int    `json:"context_window" label:"Context Window" env:"SHRIMP_LLM_CONTEXT_WINDOW"`
	MaxOutput     int    `json:"max_output" label:"Max Output Tokens" env:"SHRIMP_LLM_MAX_OUTPUT"`
}

// AgentConfig configures the defaults an AgentLoop is constructed with.
type AgentConfig struct {
	Workspace           string `json:"workspace" label:"Workspace" env:"SHRIMP_AGENT_WORKSPACE"`
	RestrictToWorkspace bool   `json:"restrict_to_workspace" label:"Restrict to Workspace" env:"SHRIMP_AGENT_RESTRICT_TO_WORKSPACE"`
	DefaultAgentName    string `json:"default_agent_name" label:"Default Agent Name" env:"SHRIMP_AGENT_DEFAULT_NAME"`
	TaskListID          string `json:"task_list_id" label:"Task List ID" env:"SHRIMP_AGENT_TASK_LIST_ID"`
	MaxToolIterations   int    `json:"max_tool_iterations" label:"Max Tool Iterations" env:"SHRIMP_AGENT_MAX_TOOL_ITERATIONS"`
}

// IdleConfig overrides the teammate idle-cycle timing.
type IdleConfig struct {
	PollIntervalMS int `json:"poll_interval_ms" label:"Idle Poll Interval (ms)" env:"SHRIMP_IDLE_POLL_INTERVAL_MS"`
	TimeoutMS      int `json:"timeout_ms" label:"Idle Timeout (ms)" env:"SHRIMP_IDLE_TIMEOUT_MS"`
}

// Config is the complete set of inputs this core loads: LLM endpoint, key,
// model id and context/output sizing; workspace root and its restriction
// flag, optional task-list id, optional agent name default and tool-iteration
// cap; and the teammate idle-cycle timing.
type Config struct {
	LLM   LLMConfig   `json:"llm" label:"LLM"`
	Agent AgentConfig `json:"agent" label:"Agent Defaults"`
	Idle  IdleConfig  `json:"idle" label:"Idle Cycle"`
	mu    sync.RWMutex
}

func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Model:         "claude-sonnet-4-6",
			ContextWindow: 200000,
			MaxOutput:     16384,
		},
		Agent: AgentConfig{
			Workspace:           ".",
			RestrictToWorkspace: true,
			DefaultAgentName:    "lead",
			TaskListID:          "default",
			MaxToolIterations:   50,
		},
		Idle: IdleConfig{
			PollIntervalMS: 1000,
			TimeoutMS:      60000,
		},
	}
}

// LoadConfig reads a JSON config file if present, then overlays any set
// environment variables, matching the teacher's file-then-env precedence.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if perr := env.Parse(cfg); perr != nil {
				return nil, perr
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return utils.WritePrivateFile(path, data)
}

func (c *Config) Lock()    { c.mu.Lock() }
func (c *Config) Unlock()  { c.mu.Unlock() }
func (c *Config) RLock()   { c.mu.RLock() }
func (c *Config) RUnlock() { c.mu.RUnlock() }

func (c *Config) WorkspacePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Agent.Workspace)
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
