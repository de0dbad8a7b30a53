package agent

import (
	"encoding/json"

	"github.com/coldforge/shrimp/pkg/providers"
)

// imageTokenEstimate is the fixed contribution an ImageBlock makes to a
// token estimate, regardless of its actual encoded size.
const imageTokenEstimate = 2000

// EstimateTokens implements the load-bearing chars/4 heuristic:
// floor(len(serialize(x)) / 4), where serialize JSON-encodes anything that
// isn't already a string. Every compaction policy in ContextManager is
// expressed in terms of this one function.
func EstimateTokens(x any) int {
	if s, ok := x.(string); ok {
		return len(s) / 4
	}
	data, err := json.Marshal(x)
	if err != nil {
		return 0
	}
	return len(data) / 4
}

// estimateBlockTokens special-cases ImageBlock to the fixed constant and
// falls back to EstimateTokens for every other variant.
func estimateBlockTokens(b providers.Block) int {
	if _, ok := b.(providers.ImageBlock); ok {
		return imageTokenEstimate
	}
	return EstimateTokens(b)
}

// estimateMessageTokens sums a message's content, whichever shape it holds.
func estimateMessageTokens(msg providers.Message) int {
	if !msg.IsBlock {
		return EstimateTokens(msg.Text)
	}
	total := 0
	for _, b := range msg.Blocks {
		total += estimateBlockTokens(b)
	}
	return total
}

// totalTokens sums a full transcript's estimated token footprint.
func totalTokens(messages []providers.Message) int {
	total := 0
	for _, m := range messages {
		total += estimateMessageTokens(m)
	}
	return total
}
