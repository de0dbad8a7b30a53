// Package tools hosts the tool registry: a name-keyed map of common.Tool
// plus the visibility scoping that decides which definitions a given
// caller (lead, teammate, or subagent) sees.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/coldforge/shrimp/pkg/providers"
	"github.com/coldforge/shrimp/pkg/tools/common"
)

// Registry is a name-keyed set of tools, filterable by visibility scope.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]common.Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]common.Tool)}
}

func (r *Registry) Register(t common.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

func (r *Registry) Get(name string) (common.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

func visibilityOf(t common.Tool) common.Visibility {
	if st, ok := t.(common.ScopedTool); ok {
		return st.Visibility()
	}
	return common.TeammateOK
}

// sortedNames returns every registered tool name in deterministic order.
// Tool definitions go to the model as part of the system turn; an
// unstable iteration order would change that payload byte-for-byte between
// otherwise-identical calls and defeat the provider's prompt-prefix cache.
func (r *Registry) sortedNames() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// subagentSpawnTool is excluded from every subagent_filtered scope: a
// subagent never gets to spawn another subagent.
const subagentSpawnTool = "Task"

// Scoped returns the subset of tool names visible to a caller in the given
// scope: lead sees everything, teammate_ok excludes lead_only tools,
// subagent_filtered is the same base set minus lead_only tools and minus the
// spawn-subagent tool itself (recursion is forbidden). The explore/plan
// read-only restriction is a separate, narrower filter applied at dispatch
// time by the caller, not a registry-level visibility tag.
func (r *Registry) Scoped(scope common.Visibility) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for _, name := range r.sortedNames() {
		v := visibilityOf(r.tools[name])
		switch scope {
		case common.LeadOnly:
			out = append(out, name)
		case common.TeammateOK:
			if v != common.LeadOnly {
				out = append(out, name)
			}
		case common.SubagentFiltered:
			if v != common.LeadOnly && name != subagentSpawnTool {
				out = append(out, name)
			}
		}
	}
	return out
}

// Definitions converts the named tools into the flat providers.Tool shape
// the LLMClient expects.
func (r *Registry) Definitions(names []string) []providers.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]providers.Tool, 0, len(names))
	for _, name := range names {
		t, ok := r.tools[name]
		if !ok {
			continue
		}
		defs = append(defs, providers.Tool{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.Parameters(),
		})
	}
	return defs
}

// Execute runs one named tool call against the registry and renders the
// result as the (text, isError) pair a ToolResultBlock needs. An unknown
// tool name or a call outside the caller's scope comes back as an error
// result rather than a Go error, since it still needs to go back to the
// model as a tool_result.
func (r *Registry) Execute(ctx context.Context, scope common.Visibility, name string, args map[string]any) (string, bool) {
	t, ok := r.Get(name)
	if !ok {
		return fmt.Sprintf("Error: unknown tool %q", name), true
	}
	allowed := false
	for _, n := range r.Scoped(scope) {
		if n == name {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Sprintf("Error: tool %q is not available in this context", name), true
	}
	result := t.Execute(ctx, args)
	return result.ForLLM, result.IsError
}

// ExecuteFor adapts Execute to the teammate.ToolExecutor shape, which
// carries a caller name for bookkeeping; the registry itself is
// caller-agnostic today but keeps the parameter so per-caller auditing has
// a home if it's ever added.
func (r *Registry) ExecuteFor(ctx context.Context, scope common.Visibility, _caller, name string, args map[string]any) (string, bool) {
	return r.Execute(ctx, scope, name, args)
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// ExecutorFor binds a Registry to a fixed visibility scope, satisfying
// agent.ToolExecutor / agent.ToolDefiner for a single caller (the lead,
// a teammate, or a subagent) without threading the scope through every
// call site.
type ExecutorFor struct {
	Registry *Registry
	Scope    common.Visibility
}

func (e ExecutorFor) Execute(ctx context.Context, name string, input map[string]any) (string, bool) {
	return e.Registry.Execute(ctx, e.Scope, name, input)
}

func (e ExecutorFor) Definitions() []providers.Tool {
	return e.Registry.Definitions(e.Registry.Scoped(e.Scope))
}

// TeammateExecutor adapts a Registry to teammate.ToolExecutor's
// caller-carrying Execute signature.
type TeammateExecutor struct {
	Registry *Registry
	Scope    common.Visibility
}

func (e TeammateExecutor) Execute(ctx context.Context, caller, name string, input map[string]any) (string, bool) {
	return e.Registry.ExecuteFor(ctx, e.Scope, caller, name, input)
}
