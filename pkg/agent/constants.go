package agent

import "time"

// Context-manager and agent-loop constants — extracted from the formulas
// that every compaction policy is expressed in terms of.
const (
	// MinSavingsTokens is the minimum token reduction should_compact
	// requires between the full transcript and its last-5-message tail
	// before compaction is worth running.
	MinSavingsTokens = 20000

	// MaxOutputTokens is the handle_large_output spill threshold.
	MaxOutputTokens = 40000

	// KeepRecent is the number of most-recent compactable tool results
	// microcompact leaves untouched.
	KeepRecent = 3

	// KeepTail is the number of trailing messages auto_compact preserves
	// verbatim from the original transcript.
	KeepTail = 5

	// CompactableMinChars is the minimum serialized length a tool_result's
	// content must exceed before microcompact will placeholder it (roughly
	// 250 tokens at the chars/4 estimate).
	CompactableMinChars = 1000

	// MaxRestoreFiles caps how many distinct file paths auto_compact
	// re-reads into the restore cache.
	MaxRestoreFiles = 5

	// MaxRestoreTokensPerFile caps a single restored file's contribution.
	MaxRestoreTokensPerFile = 5000

	// MaxRestoreTokensTotal caps the cumulative restore-cache budget.
	MaxRestoreTokensTotal = 50000

	// SummaryReplyMaxTokens bounds the auto_compact summarization call.
	SummaryReplyMaxTokens = 2000

	// SummarizationTimeout bounds how long the summarization LLM call is
	// allowed to run before being cancelled.
	SummarizationTimeout = 90 * time.Second

	// DefaultMaxOutput is the max_output assumed when a provider does not
	// report its own cap, used by the token-threshold formula's min(...)
	// term.
	DefaultMaxOutput = 20000

	// ThresholdReserve is the fixed headroom subtracted from the context
	// window on top of max_output, covering the system prompt and tool
	// definitions.
	ThresholdReserve = 13000

	// RoundsWithoutTodoLimit is the number of turns the Todo reminder
	// waits before injecting a <reminder> block; reset whenever TodoWrite
	// is invoked.
	RoundsWithoutTodoLimit = 3

	// IdlePollInterval is how often a teammate's idle phase polls its
	// inbox and the task board for unclaimed work.
	IdlePollInterval = 1 * time.Second

	// IdleTimeout is how long a teammate stays idle before shutting down.
	IdleTimeout = 60 * time.Second

	// BashDefaultTimeout and BashLongTimeout bound subprocess duration for
	// the bash background-job kind.
	BashDefaultTimeout = 120 * time.Second
	BashLongTimeout    = 300 * time.Second
)

// LLMCallTimeouts is the per-attempt timeout schedule AgentLoop gives the
// LLMClient.Send call: three attempts, each longer than the last, so a
// single slow-but-alive request doesn't get cut off mid-retry.
var LLMCallTimeouts = []time.Duration{60 * time.Second, 90 * time.Second, 120 * time.Second}

// LLMCallBackoffs is the delay before each retry in LLMCallTimeouts.
var LLMCallBackoffs = []time.Duration{2 * time.Second, 5 * time.Second}

// TokenThreshold computes the dynamic compaction threshold for a given
// context window and reported max-output size: the point past which
// should_compact starts considering the transcript oversized.
func TokenThreshold(contextWindow, maxOutput int) int {
	capped := maxOutput
	if capped <= 0 || capped > DefaultMaxOutput {
		capped = DefaultMaxOutput
	}
	return contextWindow - capped - ThresholdReserve
}
