// Package background is the thread-pool-style runner for bash, subagent,
// and teammate jobs. Jobs run fire-and-forget; their completions land on a
// notification queue that the agent loop drains before every LLM call.
package background

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/coldforge/shrimp/pkg/agent"
	"github.com/coldforge/shrimp/pkg/utils"
)

type Kind string

const (
	KindBash     Kind = "bash"
	KindAgent    Kind = "agent"
	KindTeammate Kind = "teammate"
)

func (k Kind) prefix() string {
	switch k {
	case KindBash:
		return "b"
	case KindAgent:
		return "a"
	case KindTeammate:
		return "t"
	default:
		return "x"
	}
}

type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusStopped   Status = "stopped"
	StatusError     Status = "error"
	StatusTimeout   Status = "timeout"
)

// Job is a snapshot of one background unit of work.
type Job struct {
	ID        string
	Kind      Kind
	Command   string
	Status    Status
	Output    string
	OutputPath string
	StartedAt time.Time
	EndedAt   time.Time
}

// Notification is a completion event queued for the agent loop to surface
// to the model on its next turn. Summary is the notification's own copy,
// capped at 500 chars, and is never rewritten by downstream compaction.
type Notification struct {
	TaskID     string
	Kind       Kind
	Status     Status
	Summary    string
	OutputPath string
}

var dangerousBashFragments = []string{
	"rm -rf /", "sudo", "shutdown", "reboot", "> /dev/",
}

type job struct {
	Job
	mu       sync.Mutex
	done     chan struct{}
	doneOnce sync.Once
	stopped  bool
}

func (j *job) signalDone() {
	j.doneOnce.Do(func() { close(j.done) })
}

// Executor runs jobs under a bounded worker pool and collects a
// notification queue of completions.
type Executor struct {
	workspace  string
	outputsDir string

	mu   sync.RWMutex
	jobs map[string]*job

	notifyMu      sync.Mutex
	notifications []Notification

	sem     chan struct{}
	limiter *rate.Limiter
}

// NewExecutor bounds concurrent jobs to poolSize and rate-limits bash
// timeout-escalation retries to one per second, matching the teacher's
// general preference for explicit backoff over unbounded retry loops.
func NewExecutor(workspace string, poolSize int) *Executor {
	if poolSize <= 0 {
		poolSize = 4
	}
	return &Executor{
		workspace:  workspace,
		outputsDir: filepath.Join(workspace, ".task_outputs"),
		jobs:       make(map[string]*job),
		sem:        make(chan struct{}, poolSize),
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

func newTaskID(kind Kind) string {
	buf := make([]byte, 3)
	_, _ = rand.Read(buf)
	return kind.prefix() + hex.EncodeToString(buf)
}

func (e *Executor) outputPath(id string) string {
	return filepath.Join(e.outputsDir, id+".txt")
}

// RunInBackground runs fn in the worker pool under the given kind/label,
// returning a task id immediately. fn's returned string becomes the job's
// final output.
func (e *Executor) RunInBackground(kind Kind, label string, fn func(ctx context.Context) (string, error)) string {
	id := newTaskID(kind)
	j := &job{
		Job:  Job{ID: id, Kind: kind, Command: label, Status: StatusRunning, StartedAt: time.Now(), OutputPath: e.outputPath(id)},
		done: make(chan struct{}),
	}

	e.mu.Lock()
	e.jobs[id] = j
	e.mu.Unlock()

	go func() {
		e.sem <- struct{}{}
		defer func() { <-e.sem }()

		output, err := fn(context.Background())

		j.mu.Lock()
		if j.stopped {
			j.mu.Unlock()
			return
		}
		status := StatusCompleted
		if err != nil {
			status = StatusError
			if isDeadlineExceeded(err) {
				status = StatusTimeout
			}
			if output == "" {
				output = err.Error()
			}
		}
		j.Status = status
		j.Output = output
		j.EndedAt = time.Now()
		j.mu.Unlock()

		_ = e.writeOutput(id, output)
		j.signalDone()

		e.enqueueNotification(Notification{
			TaskID:     id,
			Kind:       kind,
			Status:     status,
			Summary:    truncate(output, 500),
			OutputPath: j.OutputPath,
		})
	}()

	return id
}

func (e *Executor) writeOutput(id, output string) error {
	if err := os.MkdirAll(e.outputsDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(e.outputPath(id), []byte(output), 0o644)
}

// RunBash starts a bash command in the background with the teacher's
// timeout convention: BashDefaultTimeout normally, escalating once to
// BashLongTimeout if the rate limiter allows a retry after the first
// timeout.
func (e *Executor) RunBash(command string) string {
	for _, frag := range dangerousBashFragments {
		if strings.Contains(command, frag) {
			id := newTaskID(KindBash)
			j := &job{
				Job: Job{
					ID: id, Kind: KindBash, Command: command, Status: StatusError,
					Output: "Error: dangerous command blocked", StartedAt: time.Now(), EndedAt: time.Now(),
					OutputPath: e.outputPath(id),
				},
				done: make(chan struct{}),
			}
			j.signalDone()
			e.mu.Lock()
			e.jobs[id] = j
			e.mu.Unlock()
			return id
		}
	}

	return e.RunInBackground(KindBash, command, func(ctx context.Context) (string, error) {
		out, err := e.runBashOnce(ctx, command, agent.BashDefaultTimeout)
		if err != nil && isDeadlineExceeded(err) && e.limiter.Allow() {
			out, err = e.runBashOnce(ctx, command, agent.BashLongTimeout)
		}
		return out, err
	})
}

func (e *Executor) runBashOnce(ctx context.Context, command string, timeout time.Duration) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, "sh", "-c", command)
	cmd.Dir = e.workspace

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	out := strings.TrimSpace(buf.String())
	if err != nil {
		if cctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("timeout after %s: %w", timeout, context.DeadlineExceeded)
		}
		if out == "" {
			return "", err
		}
	}
	if out == "" {
		out = "(no output)"
	}
	return out, nil
}

func isDeadlineExceeded(err error) bool {
	return err != nil && strings.Contains(err.Error(), context.DeadlineExceeded.Error())
}

func truncate(s string, n int) string {
	return utils.Truncate(s, n)
}

// GetOutput returns a job's current state. If block and the job is still
// running, it waits up to timeout for completion before returning whatever
// state is current.
func (e *Executor) GetOutput(id string, block bool, timeout time.Duration) (Job, error) {
	e.mu.RLock()
	j, ok := e.jobs[id]
	e.mu.RUnlock()
	if !ok {
		return Job{}, fmt.Errorf("background: unknown task %s", id)
	}

	if block {
		select {
		case <-j.done:
		case <-time.After(timeout):
		}
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	return j.Job, nil
}

// ReadOutput reads the job's append-only output file from a byte offset.
func (e *Executor) ReadOutput(id string, offset int) (string, error) {
	data, err := os.ReadFile(e.outputPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	if offset < 0 || offset > len(data) {
		offset = 0
	}
	return string(data[offset:]), nil
}

// StopTask atomically flips a running job to stopped and raises its
// completion signal. It does not forcibly kill the underlying work — that
// is the tool implementation's responsibility to cooperate with.
func (e *Executor) StopTask(id string) error {
	e.mu.RLock()
	j, ok := e.jobs[id]
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("background: unknown task %s", id)
	}

	j.mu.Lock()
	if j.Status != StatusRunning {
		j.mu.Unlock()
		return nil
	}
	j.stopped = true
	j.Status = StatusStopped
	j.EndedAt = time.Now()
	j.mu.Unlock()

	j.signalDone()
	e.enqueueNotification(Notification{TaskID: id, Kind: j.Kind, Status: StatusStopped})
	return nil
}

// List returns every job, sorted by id.
func (e *Executor) List() []Job {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Job, 0, len(e.jobs))
	for _, j := range e.jobs {
		j.mu.Lock()
		out = append(out, j.Job)
		j.mu.Unlock()
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

func (e *Executor) enqueueNotification(n Notification) {
	e.notifyMu.Lock()
	defer e.notifyMu.Unlock()
	e.notifications = append(e.notifications, n)
}

// DrainNotifications returns and clears every pending completion
// notification, for the agent loop to inject before its next LLM call.
func (e *Executor) DrainNotifications() []Notification {
	e.notifyMu.Lock()
	defer e.notifyMu.Unlock()
	out := e.notifications
	e.notifications = nil
	return out
}
