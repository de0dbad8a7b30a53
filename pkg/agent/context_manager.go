package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/coldforge/shrimp/pkg/logger"
	"github.com/coldforge/shrimp/pkg/providers"
	"github.com/coldforge/shrimp/pkg/utils"
)

// microcompactPlaceholder replaces the content of an old compactable tool
// result; the block/message structure around it is left untouched.
const microcompactPlaceholder = "[Output compacted - re-read if needed]"

// defaultCompactableTools is the set of tool names whose results
// microcompact is willing to placeholder.
var defaultCompactableTools = map[string]bool{
	"bash":       true,
	"read_file":  true,
	"write_file": true,
	"edit_file":  true,
}

// RestoredFile is one entry in the post-compaction file-restore cache.
type RestoredFile struct {
	Path    string
	Content string
}

// ContextManager owns the three-layer compression policy: in-place
// microcompact, LLM-assisted auto-compact with file restore, and
// large-output spill-to-disk.
type ContextManager struct {
	Workspace        string
	TranscriptDir    string
	Client           providers.LLMClient
	Model            string
	ContextWindow    int
	MaxOutput        int
	CompactableTools map[string]bool
}

func NewContextManager(workspace string, client providers.LLMClient, model string, contextWindow, maxOutput int) *ContextManager {
	dir := filepath.Join(workspace, ".transcripts")
	return &ContextManager{
		Workspace:        workspace,
		TranscriptDir:    dir,
		Client:           client,
		Model:            model,
		ContextWindow:    contextWindow,
		MaxOutput:        maxOutput,
		CompactableTools: defaultCompactableTools,
	}
}

type compactableResult struct {
	msgIdx   int
	blockIdx int
	block    providers.ToolResultBlock
	tokens   int
}

// Microcompact walks messages in order, finds tool_result blocks whose
// matching tool_use names a compactable tool, and placeholders the content
// of all but the most recent KeepRecent such results (skipping any result
// too small to be worth collapsing). Mutates and returns the same slice.
func (cm *ContextManager) Microcompact(messages []providers.Message) []providers.Message {
	toolNames := toolUseNamesByID(messages)

	var found []compactableResult
	for mi, msg := range messages {
		if !msg.IsBlock {
			continue
		}
		for bi, b := range msg.Blocks {
			tr, ok := b.(providers.ToolResultBlock)
			if !ok {
				continue
			}
			name, ok := toolNames[tr.ToolUseID]
			if !ok || !cm.compactable(name) {
				continue
			}
			found = append(found, compactableResult{
				msgIdx:   mi,
				blockIdx: bi,
				block:    tr,
				tokens:   estimateBlockTokens(tr),
			})
		}
	}

	if len(found) <= KeepRecent {
		return messages
	}

	cutoff := len(found) - KeepRecent
	for i := 0; i < cutoff; i++ {
		entry := found[i]
		if EstimateTokens(entry.block.Content) < CompactableMinChars/4 {
			continue
		}
		collapsed := entry.block
		collapsed.Content = microcompactPlaceholder
		messages[entry.msgIdx].Blocks[entry.blockIdx] = collapsed
	}
	return messages
}

func (cm *ContextManager) compactable(name string) bool {
	set := cm.CompactableTools
	if set == nil {
		set = defaultCompactableTools
	}
	return set[name]
}

func toolUseNamesByID(messages []providers.Message) map[string]string {
	names := make(map[string]string)
	for _, msg := range messages {
		if !msg.IsBlock {
			continue
		}
		for _, b := range msg.Blocks {
			if tu, ok := b.(providers.ToolUseBlock); ok {
				names[tu.ID] = tu.Name
			}
		}
	}
	return names
}

// ShouldCompact reports whether the transcript has grown enough to justify
// the cost of an auto-compact pass.
func (cm *ContextManager) ShouldCompact(messages []providers.Message) bool {
	threshold := TokenThreshold(cm.ContextWindow, cm.MaxOutput)
	total := totalTokens(messages)
	if total <= threshold {
		return false
	}
	tail := tailMessages(messages, KeepTail)
	savings := total - totalTokens(tail)
	return savings >= MinSavingsTokens
}

func tailMessages(messages []providers.Message, n int) []providers.Message {
	if len(messages) <= n {
		return messages
	}
	return messages[len(messages)-n:]
}

// AutoCompact archives the transcript, rebuilds a file-restore cache,
// summarizes the whole transcript via the LLM, and returns a new
// transcript: a compressed-summary user turn, a synthetic assistant ack,
// one user/assistant ack pair per restored file, then the original
// transcript's last KeepTail messages.
func (cm *ContextManager) AutoCompact(ctx context.Context, messages []providers.Message) ([]providers.Message, error) {
	if err := cm.SaveTranscript(messages); err != nil {
		return nil, fmt.Errorf("auto_compact: save_transcript: %w", err)
	}

	restored := cm.RestoreRecentFiles(messages)

	summary, err := cm.summarize(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("auto_compact: summarize: %w", err)
	}

	out := make([]providers.Message, 0, 2+2*len(restored)+KeepTail)
	out = append(out, providers.NewTextMessage("user", "[Conversation compressed]\n\n"+summary))
	out = append(out, providers.NewTextMessage("assistant", "Understood. Continuing from the summary above."))

	for _, rf := range restored {
		out = append(out, providers.NewTextMessage("user", fmt.Sprintf("[Restored after compact] %s:\n%s", rf.Path, rf.Content)))
		out = append(out, providers.NewTextMessage("assistant", "Noted."))
	}

	out = append(out, tailMessages(messages, KeepTail)...)

	logger.InfoCF("context", "auto_compact completed", map[string]any{
		"restored_files": len(restored),
		"kept_messages":  len(tailMessages(messages, KeepTail)),
	})
	return out, nil
}

func (cm *ContextManager) summarize(ctx context.Context, messages []providers.Message) (string, error) {
	var sb strings.Builder
	sb.WriteString("Summarize this conversation chronologically: goals, actions taken, ")
	sb.WriteString("decisions made, current state, and pending work. Be concise.\n\nTranscript:\n")
	for _, m := range messages {
		sb.WriteString(m.Role)
		sb.WriteString(": ")
		sb.WriteString(renderMessageForSummary(m))
		sb.WriteString("\n")
	}

	sctx, cancel := context.WithTimeout(ctx, SummarizationTimeout)
	defer cancel()

	resp, err := cm.Client.Send(sctx, "", []providers.Message{
		providers.NewTextMessage("user", sb.String()),
	}, nil, SummaryReplyMaxTokens)
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for _, b := range resp.Content {
		if t, ok := b.(providers.TextBlock); ok {
			text.WriteString(t.Text)
		}
	}
	return strings.TrimSpace(text.String()), nil
}

func renderMessageForSummary(msg providers.Message) string {
	if !msg.IsBlock {
		return msg.Text
	}
	var sb strings.Builder
	for _, b := range msg.Blocks {
		switch v := b.(type) {
		case providers.TextBlock:
			sb.WriteString(v.Text)
		case providers.ToolUseBlock:
			fmt.Fprintf(&sb, "[called %s]", v.Name)
		case providers.ToolResultBlock:
			content := fmt.Sprintf("%v", v.Content)
			if len(content) > 500 {
				content = content[:500] + "..."
			}
			sb.WriteString(content)
		case providers.ImageBlock:
			sb.WriteString("[image]")
		}
		sb.WriteString(" ")
	}
	return sb.String()
}

// RestoreRecentFiles collects the distinct paths that appeared as
// read_file tool inputs, most-recent-first, re-reading up to
// MaxRestoreFiles of them (each capped at MaxRestoreTokensPerFile, the
// whole cache capped at MaxRestoreTokensTotal) so they survive a compact.
func (cm *ContextManager) RestoreRecentFiles(messages []providers.Message) []RestoredFile {
	paths := distinctReadFilePaths(messages)

	var restored []RestoredFile
	totalBudget := 0
	for _, path := range paths {
		if len(restored) >= MaxRestoreFiles {
			break
		}
		full := path
		if !filepath.IsAbs(full) {
			full = filepath.Join(cm.Workspace, path)
		}
		data, err := os.ReadFile(full)
		if err != nil {
			continue
		}
		content := string(data)
		maxChars := MaxRestoreTokensPerFile * 4
		if len(content) > maxChars {
			content = content[:maxChars]
		}
		tokens := EstimateTokens(content)
		if totalBudget+tokens > MaxRestoreTokensTotal {
			remainingTokens := MaxRestoreTokensTotal - totalBudget
			if remainingTokens <= 0 {
				break
			}
			remainingChars := remainingTokens * 4
			if remainingChars < len(content) {
				content = content[:remainingChars]
			}
			tokens = EstimateTokens(content)
		}
		restored = append(restored, RestoredFile{Path: path, Content: content})
		totalBudget += tokens
		if totalBudget >= MaxRestoreTokensTotal {
			break
		}
	}
	return restored
}

// distinctReadFilePaths returns read_file input paths in most-recent-first
// access order, deduplicated.
func distinctReadFilePaths(messages []providers.Message) []string {
	seen := make(map[string]bool)
	var paths []string
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if !msg.IsBlock {
			continue
		}
		for _, b := range msg.Blocks {
			tu, ok := b.(providers.ToolUseBlock)
			if !ok || tu.Name != "read_file" {
				continue
			}
			path, _ := tu.Input["path"].(string)
			if path == "" || seen[path] {
				continue
			}
			seen[path] = true
			paths = append(paths, path)
		}
	}
	return paths
}

// HandleLargeOutput returns text unchanged if it fits under
// MaxOutputTokens; otherwise it spills the full text to a time-suffixed
// file under TranscriptDir and returns a short pointer message with a
// preview.
func (cm *ContextManager) HandleLargeOutput(text string) (string, error) {
	if EstimateTokens(text) <= MaxOutputTokens {
		return text, nil
	}

	if err := os.MkdirAll(cm.TranscriptDir, 0o755); err != nil {
		return "", fmt.Errorf("handle_large_output: %w", err)
	}
	name := fmt.Sprintf("output_%d.txt", time.Now().Unix())
	path := filepath.Join(cm.TranscriptDir, name)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("handle_large_output: %w", err)
	}

	preview := utils.Truncate(text, 2000)
	return fmt.Sprintf(
		"Output too large (~%d tokens). Full output written to %s.\n\nPreview:\n%s",
		EstimateTokens(text), path, preview,
	), nil
}

// SaveTranscript appends every message as one JSON object per line to the
// permanent conversation archive. Append-only: no tmp-then-rename dance is
// needed since we never replace the file wholesale.
func (cm *ContextManager) SaveTranscript(messages []providers.Message) error {
	if err := os.MkdirAll(cm.TranscriptDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(cm.TranscriptDir, "transcript.jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, msg := range messages {
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
		if _, err := w.WriteString("\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}

// LoadTranscript re-reads the permanent archive, for round-trip tests and
// offline inspection.
func (cm *ContextManager) LoadTranscript() ([]providers.Message, error) {
	path := filepath.Join(cm.TranscriptDir, "transcript.jsonl")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var messages []providers.Message
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var msg providers.Message
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}
