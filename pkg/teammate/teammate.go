// Package teammate runs persistent worker loops: named agents that read
// their inbox, claim unblocked tasks off the board, call tools through the
// same LLM turn machine as the lead, and exit on a shutdown request.
package teammate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coldforge/shrimp/pkg/agent"
	"github.com/coldforge/shrimp/pkg/logger"
	"github.com/coldforge/shrimp/pkg/providers"
	"github.com/coldforge/shrimp/pkg/taskboard"
	"github.com/coldforge/shrimp/pkg/teambus"
)

type Status string

const (
	StatusWorking  Status = "working"
	StatusIdle     Status = "idle"
	StatusShutdown Status = "shutdown"
)

// IdleReason labels why a teammate's loop is currently waiting rather than
// acting.
type IdleReason string

const (
	IdleNoToolUse        IdleReason = "no_tool_use"
	IdleAwaitingMessages IdleReason = "awaiting_messages"
	IdleAwaitingTasks    IdleReason = "awaiting_tasks"
	IdleTimeout          IdleReason = "timeout"
)

// Member is a snapshot of one teammate's bookkeeping state.
type Member struct {
	Name       string
	AgentID    string // "<name>@<team>"
	Role       string
	Team       string
	Status     Status
	IdleReason IdleReason
}

// ToolExecutor is the subset of a tool registry a teammate loop needs: run
// one tool call and report whether the result is an error. The concrete
// registry (visibility-scoped to teammate_ok tools) implements this.
type ToolExecutor interface {
	Execute(ctx context.Context, caller, name string, input map[string]any) (result string, isError bool)
}

// Manager owns every spawned teammate's loop and bookkeeping.
type Manager struct {
	client    providers.LLMClient
	model     string
	tools     ToolExecutor
	bus       *teambus.Bus
	board     *taskboard.Board
	cm        *agent.ContextManager
	workspace string
	team      string

	mu      sync.Mutex
	members map[string]*Member
}

func NewManager(client providers.LLMClient, model string, tools ToolExecutor, bus *teambus.Bus, board *taskboard.Board, cm *agent.ContextManager, workspace, team string) *Manager {
	m := &Manager{
		client:    client,
		model:     model,
		tools:     tools,
		bus:       bus,
		board:     board,
		cm:        cm,
		workspace: workspace,
		team:      team,
		members:   make(map[string]*Member),
	}
	bus.SetKnownRecipients(m.MemberNames)
	return m
}

// Spawn starts (or restarts, if idle/shutdown) a named teammate loop.
func (m *Manager) Spawn(name, role, prompt string) error {
	m.mu.Lock()
	if existing, ok := m.members[name]; ok && existing.Status == StatusWorking {
		m.mu.Unlock()
		return fmt.Errorf("teammate: %q is currently %s", name, existing.Status)
	}
	agentID := name + "@" + m.team
	m.members[name] = &Member{Name: name, AgentID: agentID, Role: role, Team: m.team, Status: StatusWorking}
	m.mu.Unlock()

	go m.runLoop(name, role, prompt)
	return nil
}

func (m *Manager) setStatus(name string, status Status, reason IdleReason) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mem, ok := m.members[name]; ok {
		mem.Status = status
		mem.IdleReason = reason
	}
}

func (m *Manager) identitySystem(name, agentID, role string) string {
	return fmt.Sprintf(
		"You are teammate '%s' (%s) in team '%s', role: %s, working at %s.",
		name, agentID, m.team, role, m.workspace,
	)
}

// runLoop is the teammate's persistent turn machine: inbox drain, LLM
// call, tool dispatch, idle/wake cycle, repeat until a shutdown_request
// arrives, the idle phase times out, or an LLM call fails.
func (m *Manager) runLoop(name, role, prompt string) {
	agentID := name + "@" + m.team
	system := m.identitySystem(name, agentID, role)
	messages := []providers.Message{providers.NewTextMessage("user", prompt)}

	shouldExit := false

	for !shouldExit {
		messages, shouldExit = m.drainInboxInto(name, messages)
		if shouldExit {
			break
		}

		if m.cm != nil {
			messages = m.cm.Microcompact(messages)
			if m.cm.ShouldCompact(messages) {
				compacted, err := m.cm.AutoCompact(context.Background(), messages)
				if err != nil {
					logger.WarnCF("teammate", "auto_compact failed", map[string]any{"teammate": name, "error": err.Error()})
				} else {
					messages = m.reinjectIdentity(name, agentID, role, compacted)
				}
			}
		}

		resp, err := m.client.Send(context.Background(), system, messages, nil, agent.SummaryReplyMaxTokens*4)
		if err != nil {
			logger.ErrorCF("teammate", "llm call failed", map[string]any{"teammate": name, "error": err.Error()})
			break
		}

		messages = append(messages, providers.NewBlockMessage("assistant", resp.Content...))

		if resp.StopReason != providers.StopReasonToolUse {
			m.setStatus(name, StatusIdle, IdleNoToolUse)
			idle, woke, wakeMsg := m.idleWait(name)
			if !woke {
				m.setStatus(name, StatusShutdown, idle)
				return
			}
			if wakeMsg != "" {
				messages = append(messages, providers.NewTextMessage("user", wakeMsg))
			}
			m.setStatus(name, StatusWorking, "")
			continue
		}

		var results []providers.Block
		for _, block := range resp.Content {
			tu, ok := block.(providers.ToolUseBlock)
			if !ok {
				continue
			}
			result, isError := m.dispatch(name, tu)
			results = append(results, providers.ToolResultBlock{
				ToolUseID: tu.ID,
				Content:   result,
				IsError:   isError,
			})
		}
		messages = append(messages, providers.NewBlockMessage("user", results...))
	}

	m.setStatus(name, StatusShutdown, "")
}

// idleWait polls the inbox and the unclaimed task board until one of them
// has work, or IdleTimeout elapses. A task found unclaimed is claimed
// atomically before returning, and a wake message describing the claim is
// returned for the caller to inject as the next turn's user content. It
// returns the idle reason recorded, whether the teammate should wake and
// resume its loop, and that optional wake message.
func (m *Manager) idleWait(name string) (IdleReason, bool, string) {
	deadline := time.Now().Add(agent.IdleTimeout)
	for time.Now().Before(deadline) {
		if has, _ := m.bus.Peek(name); has {
			return IdleAwaitingMessages, true, ""
		}
		if tasks, err := m.board.Unclaimed(); err == nil && len(tasks) > 0 {
			t := tasks[0]
			if _, err := m.board.Claim(t.ID, name); err == nil {
				return IdleAwaitingTasks, true, fmt.Sprintf(
					"Unclaimed task auto-claimed - #%s: %s\n\n%s", t.ID, t.Subject, t.Description,
				)
			}
		}
		time.Sleep(agent.IdlePollInterval)
	}
	return IdleTimeout, false, ""
}

// drainInboxInto reads every queued inbox message and turns each into a
// synthetic user turn, branching on message type:
//   - shutdown_request: reports shouldExit so the caller terminates the
//     loop immediately, no tool round-trip required.
//   - plan_approval_response: a literal "Plan APPROVED."/"Plan REJECTED:
//     <feedback>" line.
//   - everything else: a <teammate-message sender="..." type="..."> tag
//     wrapping the content.
func (m *Manager) drainInboxInto(name string, messages []providers.Message) ([]providers.Message, bool) {
	inbox, err := m.bus.ReadInbox(name)
	if err != nil || len(inbox) == 0 {
		return messages, false
	}

	for _, msg := range inbox {
		if msg.Type == teambus.TypeShutdownRequest {
			return messages, true
		}

		var text string
		switch msg.Type {
		case teambus.TypePlanApprovalResponse:
			if msg.Approved != nil && *msg.Approved {
				text = "Plan APPROVED."
			} else {
				text = fmt.Sprintf("Plan REJECTED: %s", msg.Content)
			}
		default:
			text = fmt.Sprintf(`<teammate-message sender="%s" type="%s">%s</teammate-message>`, msg.Sender, msg.Type, msg.Content)
		}
		messages = append(messages, providers.NewTextMessage("user", text))
	}

	return messages, false
}

// reinjectIdentity restores the teammate's framing right after a
// compaction pass by appending a reminder directly onto the content of the
// compacted transcript's first message, since the compressed summary alone does not
// carry who the teammate is and a trailing synthetic pair would be lost
// the next time the tail gets trimmed.
func (m *Manager) reinjectIdentity(name, agentID, _ string, messages []providers.Message) []providers.Message {
	if len(messages) == 0 {
		return messages
	}
	reminder := fmt.Sprintf("\n\nRemember: You are teammate '%s' (%s) in team '%s'.", name, agentID, m.team)
	messages[0] = providers.AppendText(messages[0], reminder)
	return messages
}

func (m *Manager) dispatch(caller string, tu providers.ToolUseBlock) (string, bool) {
	return m.tools.Execute(context.Background(), caller, tu.Name, tu.Input)
}

// RequestShutdown is the lead-side half of the shutdown protocol.
func (m *Manager) RequestShutdown(teammate string) error {
	return m.bus.Send("lead", teammate, teambus.TypeShutdownRequest, "Please shut down gracefully.", "", nil)
}

// ReviewPlan is the lead-side half of the plan-approval protocol: send a
// plan_approval_response with the approve flag and optional feedback.
func (m *Manager) ReviewPlan(teammate string, approve bool, feedback string) error {
	a := approve
	return m.bus.Send("lead", teammate, teambus.TypePlanApprovalResponse, feedback, "", &a)
}

// List returns every teammate's current bookkeeping snapshot.
func (m *Manager) List() []Member {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Member, 0, len(m.members))
	for _, mem := range m.members {
		out = append(out, *mem)
	}
	return out
}

func (m *Manager) MemberNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.members))
	for name := range m.members {
		names = append(names, name)
	}
	return names
}
