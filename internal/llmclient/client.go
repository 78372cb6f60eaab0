// Package llmclient wraps the language-model calls shared by the agent
// loop (C9) and the weekly digest narrative (C11 step 9). It replaces the
// teacher's gRPC sidecar client (pkg/llm/llm_grpc.go) with a direct
// anthropic-sdk-go client, since the teacher's protobuf stubs are
// code-generated and this environment cannot run protoc. See DESIGN.md's
// dropped-dependencies section.
package llmclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sitewatch/sitewatch/internal/apperr"
)

// Message is a provider-agnostic turn in a conversation, mirroring the
// teacher's agent.ConversationMessage.
type Message struct {
	Role    string // "user" | "assistant"
	Content string
}

// ToolDefinition describes one closed-set tool the model may invoke,
// mirroring the teacher's agent.ToolDefinition.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// ToolUse is one tool-invocation block returned by the model.
type ToolUse struct {
	ID    string
	Name  string
	Input map[string]any
}

// Response is the model's reply: free text plus zero or more tool calls.
type Response struct {
	Text     string
	ToolUses []ToolUse
	// StopReason mirrors the SDK's stop_reason ("end_turn", "tool_use", "max_tokens").
	StopReason string
}

// Client wraps the Anthropic Messages API for sitewatch's two call sites.
type Client struct {
	api   anthropic.Client
	model anthropic.Model
}

// New builds a Client from the configured API key. model defaults to
// Claude's current mid-tier model when empty.
func New(apiKey string, model string) *Client {
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_20250514)
	}
	return &Client{
		api:   anthropic.NewClient(option.WithAPIKey(apiKey)),
		model: anthropic.Model(model),
	}
}

// Converse sends the full message history plus a tool set and returns the
// model's next turn. Used by the agent loop (C9), one call per iteration.
func (c *Client) Converse(ctx context.Context, system string, messages []Message, tools []ToolDefinition, maxTokens int64) (*Response, error) {
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages:  toAnthropicMessages(messages),
		Tools:     toAnthropicTools(tools),
	}

	msg, err := c.api.Messages.New(ctx, params)
	if err != nil {
		return nil, apperr.NewStageError("llm_converse", fmt.Errorf("%w: %v", apperr.ErrRemote, err))
	}
	return fromAnthropicMessage(msg), nil
}

// Summarize sends a single prompt with no tools and returns the model's
// free-text reply, truncated to maxTokens. Used by the weekly digest
// narrative (C11 step 9).
func (c *Client) Summarize(ctx context.Context, prompt string, maxTokens int64) (string, error) {
	resp, err := c.Converse(ctx, "", []Message{{Role: "user", Content: prompt}}, nil, maxTokens)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func toAnthropicMessages(messages []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == "assistant" {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}

func toAnthropicTools(tools []ToolDefinition) []anthropic.ToolUnionParam {
	if len(tools) == 0 {
		return nil
	}
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: t.InputSchema,
				},
			},
		})
	}
	return out
}

func fromAnthropicMessage(msg *anthropic.Message) *Response {
	resp := &Response{StopReason: string(msg.StopReason)}
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			resp.Text += b.Text
		case anthropic.ToolUseBlock:
			var input map[string]any
			if err := json.Unmarshal([]byte(b.Input), &input); err != nil {
				input = map[string]any{}
			}
			resp.ToolUses = append(resp.ToolUses, ToolUse{
				ID:    b.ID,
				Name:  b.Name,
				Input: input,
			})
		}
	}
	return resp
}
