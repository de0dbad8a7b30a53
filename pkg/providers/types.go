package providers

import (
	"context"
	"encoding/json"
	"fmt"
)

// Block is the sum type for heterogeneous message content. Internal code
// never inspects an untyped map or does isinstance-style duck typing on a
// block; every Block concrete type is produced and consumed as a Go struct,
// and the JSON tag-dispatch in UnmarshalJSON below is the only place that
// branches on the wire "type" string.
type Block interface {
	blockType() string
}

// TextBlock is plain text content.
type TextBlock struct {
	Text string `json:"text"`
}

func (TextBlock) blockType() string { return "text" }

// ToolUseBlock is a tool invocation requested by the LLM. ID is a short
// opaque correlation token the LLM assigns; the matching ToolResultBlock
// must carry the same ID in ToolUseID.
type ToolUseBlock struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

func (ToolUseBlock) blockType() string { return "tool_use" }

// ToolResultBlock carries a tool handler's output back to the LLM. Content
// is either a string or a list of Block (e.g. nested text/image blocks);
// callers that only produce plain text set Content to a string.
type ToolResultBlock struct {
	ToolUseID string `json:"tool_use_id"`
	Content   any    `json:"content"`
	IsError   bool   `json:"is_error,omitempty"`
}

func (ToolResultBlock) blockType() string { return "tool_result" }

// ImageBlock is a placeholder variant for future multimodal content; it
// contributes a fixed token-estimate constant rather than a chars/4
// estimate (see agent.EstimateTokens).
type ImageBlock struct {
	Source string `json:"source"`
}

func (ImageBlock) blockType() string { return "image" }

// Message is {role, content}. Content is either a plain string or a list
// of Block. Blocks are canonicalized to concrete structs in UnmarshalJSON;
// nothing downstream of this type ever sees a bare map[string]any block.
type Message struct {
	Role    string  `json:"role"`
	Text    string  `json:"-"`
	Blocks  []Block `json:"-"`
	IsBlock bool    `json:"-"`
}

// NewTextMessage builds a string-content message.
func NewTextMessage(role, text string) Message {
	return Message{Role: role, Text: text}
}

// NewBlockMessage builds a block-content message.
func NewBlockMessage(role string, blocks ...Block) Message {
	return Message{Role: role, Blocks: blocks, IsBlock: true}
}

// AppendText mutates a message's content in place by appending suffix: for
// string content it concatenates directly, for block content it appends
// suffix to the last TextBlock (or adds a new one if the message has none).
// Used to reinject a reminder into an existing message rather than adding a
// new trailing turn.
func AppendText(m Message, suffix string) Message {
	if !m.IsBlock {
		m.Text += suffix
		return m
	}
	for i := len(m.Blocks) - 1; i >= 0; i-- {
		if tb, ok := m.Blocks[i].(TextBlock); ok {
			tb.Text += suffix
			m.Blocks[i] = tb
			return m
		}
	}
	m.Blocks = append(m.Blocks, TextBlock{Text: suffix})
	return m
}

func (m Message) MarshalJSON() ([]byte, error) {
	type wire struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	var content json.RawMessage
	var err error
	if m.IsBlock {
		content, err = marshalBlocks(m.Blocks)
	} else {
		content, err = json.Marshal(m.Text)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(wire{Role: m.Role, Content: content})
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var wire struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	m.Role = wire.Role

	trimmed := bytesTrimSpace(wire.Content)
	if len(trimmed) == 0 {
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(wire.Content, &s); err != nil {
			return err
		}
		m.Text = s
		m.IsBlock = false
		return nil
	}

	blocks, err := unmarshalBlocks(wire.Content)
	if err != nil {
		return err
	}
	m.Blocks = blocks
	m.IsBlock = true
	return nil
}

func marshalBlocks(blocks []Block) (json.RawMessage, error) {
	raw := make([]json.RawMessage, 0, len(blocks))
	for _, b := range blocks {
		encoded, err := marshalBlock(b)
		if err != nil {
			return nil, err
		}
		raw = append(raw, encoded)
	}
	return json.Marshal(raw)
}

func marshalBlock(b Block) (json.RawMessage, error) {
	switch v := b.(type) {
	case TextBlock:
		return json.Marshal(struct {
			Type string `json:"type"`
			TextBlock
		}{Type: "text", TextBlock: v})
	case ToolUseBlock:
		return json.Marshal(struct {
			Type string `json:"type"`
			ToolUseBlock
		}{Type: "tool_use", ToolUseBlock: v})
	case ToolResultBlock:
		return json.Marshal(struct {
			Type string `json:"type"`
			ToolResultBlock
		}{Type: "tool_result", ToolResultBlock: v})
	case ImageBlock:
		return json.Marshal(struct {
			Type string `json:"type"`
			ImageBlock
		}{Type: "image", ImageBlock: v})
	default:
		return nil, fmt.Errorf("providers: unknown block type %T", b)
	}
}

func unmarshalBlocks(data json.RawMessage) ([]Block, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, err
	}
	blocks := make([]Block, 0, len(raws))
	for _, raw := range raws {
		var tag struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &tag); err != nil {
			return nil, err
		}
		switch tag.Type {
		case "text":
			var b TextBlock
			if err := json.Unmarshal(raw, &b); err != nil {
				return nil, err
			}
			blocks = append(blocks, b)
		case "tool_use":
			var b ToolUseBlock
			if err := json.Unmarshal(raw, &b); err != nil {
				return nil, err
			}
			blocks = append(blocks, b)
		case "tool_result":
			var b ToolResultBlock
			if err := json.Unmarshal(raw, &b); err != nil {
				return nil, err
			}
			blocks = append(blocks, b)
		case "image":
			var b ImageBlock
			if err := json.Unmarshal(raw, &b); err != nil {
				return nil, err
			}
			blocks = append(blocks, b)
		default:
			return nil, fmt.Errorf("providers: unknown block type %q", tag.Type)
		}
	}
	return blocks, nil
}

func bytesTrimSpace(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && isJSONSpace(b[start]) {
		start++
	}
	for end > start && isJSONSpace(b[end-1]) {
		end--
	}
	return b[start:end]
}

func isJSONSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// Tool is the wire shape of a tool definition sent to the LLM.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// Response is what LLMClient.Send returns: content blocks plus the
// stop-reason label the AgentLoop branches on.
type Response struct {
	Content    []Block
	StopReason string
}

// StopReasonToolUse is the single magic token the AgentLoop branches on;
// any other stop reason terminates the current turn.
const StopReasonToolUse = "tool_use"

// LLMClient is the opaque external collaborator: a concrete wire protocol
// is a detail of the adapter package (see pkg/providers/anthropic), never
// of the core.
type LLMClient interface {
	Send(ctx context.Context, system string, messages []Message, tools []Tool, maxTokens int) (*Response, error)
}
