// Copyright (c) 2026 shrimp contributors
// License: MIT

// Package anthropicprovider is the one adapter allowed to import the
// Anthropic SDK directly. It translates providers.Message/Block at this
// boundary so no other package in the tree ever branches on the wire
// protocol's own content-block shape.
package anthropicprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/coldforge/shrimp/pkg/providers"
)

const defaultBaseURL = "https://api.anthropic.com"

type Provider struct {
	client      *anthropic.Client
	tokenSource func() (string, error)
	baseURL     string
	model       string
}

func NewProvider(token, model string) *Provider {
	return NewProviderWithBaseURL(token, model, "")
}

func NewProviderWithBaseURL(token, model, apiBase string) *Provider {
	baseURL := normalizeBaseURL(apiBase)
	client := anthropic.NewClient(
		option.WithAuthToken(token),
		option.WithBaseURL(baseURL),
	)
	return &Provider{client: &client, baseURL: baseURL, model: model}
}

func NewProviderWithTokenSource(model string, tokenSource func() (string, error), apiBase string) *Provider {
	p := NewProviderWithBaseURL("", model, apiBase)
	p.tokenSource = tokenSource
	return p
}

// Send implements providers.LLMClient.
func (p *Provider) Send(ctx context.Context, system string, messages []providers.Message, tools []providers.Tool, maxTokens int) (*providers.Response, error) {
	var opts []option.RequestOption
	if p.tokenSource != nil {
		tok, err := p.tokenSource()
		if err != nil {
			return nil, fmt.Errorf("refreshing token: %w", err)
		}
		opts = append(opts, option.WithAuthToken(tok))
	}

	params, err := buildParams(system, messages, tools, p.model, maxTokens)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Messages.New(ctx, params, opts...)
	if err != nil {
		return nil, fmt.Errorf("anthropic messages call: %w", err)
	}

	return parseResponse(resp), nil
}

func buildParams(system string, messages []providers.Message, tools []providers.Tool, model string, maxTokens int) (anthropic.MessageNewParams, error) {
	var anthropicMessages []anthropic.MessageParam

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			if msg.Text != "" {
				system = strings.TrimSpace(system + "\n" + msg.Text)
			}
		case "user":
			blocks, err := contentBlocksFor(msg)
			if err != nil {
				return anthropic.MessageNewParams{}, err
			}
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(blocks...))
		case "assistant":
			blocks, err := contentBlocksFor(msg)
			if err != nil {
				return anthropic.MessageNewParams{}, err
			}
			anthropicMessages = append(anthropicMessages, anthropic.NewAssistantMessage(blocks...))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  anthropicMessages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(tools) > 0 {
		params.Tools = toolsToParams(tools)
	}
	return params, nil
}

func contentBlocksFor(msg providers.Message) ([]anthropic.ContentBlockParamUnion, error) {
	if !msg.IsBlock {
		return []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(msg.Text)}, nil
	}

	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Blocks))
	for _, b := range msg.Blocks {
		switch v := b.(type) {
		case providers.TextBlock:
			blocks = append(blocks, anthropic.NewTextBlock(v.Text))
		case providers.ToolUseBlock:
			input, err := json.Marshal(v.Input)
			if err != nil {
				return nil, fmt.Errorf("encoding tool_use input: %w", err)
			}
			blocks = append(blocks, anthropic.ContentBlockParamUnion{
				OfToolUse: &anthropic.ToolUseBlockParam{
					ID:    v.ID,
					Name:  v.Name,
					Input: json.RawMessage(input),
				},
			})
		case providers.ToolResultBlock:
			content, err := toolResultContent(v.Content)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, anthropic.NewToolResultBlock(v.ToolUseID, content, v.IsError))
		case providers.ImageBlock:
			// Images are a placeholder variant; not yet wired to a concrete
			// encoding since no SPEC_FULL component produces one.
			blocks = append(blocks, anthropic.NewTextBlock(fmt.Sprintf("[image: %s]", v.Source)))
		}
	}
	return blocks, nil
}

func toolResultContent(content any) (string, error) {
	switch v := content.(type) {
	case string:
		return v, nil
	case nil:
		return "", nil
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("encoding tool_result content: %w", err)
		}
		return string(encoded), nil
	}
}

func toolsToParams(tools []providers.Tool) []anthropic.ToolUnionParam {
	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		schema := anthropic.ToolInputSchemaParam{}
		if props, ok := t.InputSchema["properties"].(map[string]any); ok {
			schema.Properties = props
		}
		if required, ok := t.InputSchema["required"].([]string); ok {
			schema.Required = required
		}
		tool := anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: schema,
		}
		result = append(result, anthropic.ToolUnionParam{OfTool: &tool})
	}
	return result
}

func parseResponse(resp *anthropic.Message) *providers.Response {
	var blocks []providers.Block

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			tb := block.AsText()
			blocks = append(blocks, providers.TextBlock{Text: tb.Text})
		case "tool_use":
			tu := block.AsToolUse()
			var args map[string]any
			if err := json.Unmarshal(tu.Input, &args); err != nil {
				args = map[string]any{"raw": string(tu.Input)}
			}
			blocks = append(blocks, providers.ToolUseBlock{ID: tu.ID, Name: tu.Name, Input: args})
		}
	}

	stopReason := string(resp.StopReason)
	if stopReason == "" {
		stopReason = "end_turn"
	}

	return &providers.Response{Content: blocks, StopReason: stopReason}
}

func normalizeBaseURL(apiBase string) string {
	base := strings.TrimSpace(apiBase)
	if base == "" {
		return defaultBaseURL
	}
	base = strings.TrimRight(base, "/")
	base = strings.TrimSuffix(base, "/v1")
	if base == "" {
		return defaultBaseURL
	}
	return base
}
