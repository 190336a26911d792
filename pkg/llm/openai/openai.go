// Package openai implements the llm.Adapter for the OpenAI chat
// completions wire format. Request messages are built with the
// official SDK's param types; streaming responses are parsed from raw
// SSE so the adapter works against any OpenAI-compatible endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"

	"github.com/sidecardev/sidecar/pkg/config"
	"github.com/sidecardev/sidecar/pkg/llm"
	"github.com/sidecardev/sidecar/pkg/types"
)

// Adapter speaks the OpenAI chat completions protocol.
type Adapter struct{}

// New creates an OpenAI adapter.
func New() *Adapter {
	return &Adapter{}
}

// Provider returns the provider id.
func (a *Adapter) Provider() string {
	return config.ProviderOpenAI
}

// Headers returns Bearer authentication plus content headers.
func (a *Adapter) Headers(cfg config.ProviderConfig) http.Header {
	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	if cfg.APIKey != "" {
		headers.Set("Authorization", "Bearer "+cfg.APIKey)
	}
	return headers
}

// NewRequest builds the chat completions HTTP request.
func (a *Adapter) NewRequest(ctx context.Context, cfg config.ProviderConfig, req *llm.Request) (*http.Request, error) {
	body := map[string]any{
		"model":       cfg.Model,
		"messages":    convertMessages(req.Messages),
		"max_tokens":  cfg.MaxTokens,
		"temperature": cfg.Temperature,
	}
	if req.Stream {
		body["stream"] = true
		body["stream_options"] = map[string]any{"include_usage": true}
	}
	if len(req.Tools) > 0 {
		body["tools"] = convertTools(req.Tools)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header = a.Headers(cfg)
	if req.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	return httpReq, nil
}

// convertMessages maps history messages onto OpenAI chat params. Plain
// messages use the SDK helpers; assistant tool calls and tool results
// are laid out by hand so the exact wire shape stays under our control
// for OpenAI-compatible gateways.
func convertMessages(messages []*types.Message) []any {
	converted := make([]any, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case types.RoleSystem:
			converted = append(converted, openai.SystemMessage(msg.Content))
		case types.RoleUser:
			converted = append(converted, openai.UserMessage(msg.Content))
		case types.RoleAssistant:
			if msg.ToolCall != nil {
				converted = append(converted, assistantToolCallMessage(msg))
				continue
			}
			converted = append(converted, openai.AssistantMessage(msg.Content))
		case types.RoleTool:
			if msg.ToolResult != nil {
				converted = append(converted, openai.ToolMessage(msg.ToolResult.Content, msg.ToolResult.CallID))
			}
		}
	}
	return converted
}

func assistantToolCallMessage(msg *types.Message) map[string]any {
	arguments, err := json.Marshal(msg.ToolCall.Arguments)
	if err != nil {
		arguments = []byte("{}")
	}
	entry := map[string]any{
		"role": "assistant",
		"tool_calls": []map[string]any{{
			"id":   msg.ToolCall.ID,
			"type": "function",
			"function": map[string]any{
				"name":      msg.ToolCall.Name,
				"arguments": string(arguments),
			},
		}},
	}
	if msg.Content != "" {
		entry["content"] = msg.Content
	}
	return entry
}

func convertTools(specs []llm.ToolSpec) []map[string]any {
	converted := make([]map[string]any, 0, len(specs))
	for _, spec := range specs {
		converted = append(converted, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        spec.Name,
				"description": spec.Description,
				"parameters":  spec.Schema,
			},
		})
	}
	return converted
}

// NewParser returns a parser for one SSE stream.
func (a *Adapter) NewParser() llm.ChunkParser {
	return &chunkParser{}
}

// chunkParser accumulates streamed tool call fragments until the
// [DONE] sentinel, at which point it produces the terminal chunk.
type chunkParser struct {
	toolID   string
	toolName string
	toolArgs strings.Builder
	usage    *types.TokenUsage
}

type usagePayload struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (u *usagePayload) toUsage() *types.TokenUsage {
	return &types.TokenUsage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}

type streamPayload struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *usagePayload `json:"usage"`
}

// ParseLine handles one SSE line of the chat completions stream.
func (p *chunkParser) ParseLine(line string) (*llm.StreamChunk, error) {
	if !strings.HasPrefix(line, "data:") {
		return nil, nil
	}
	data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
	if data == "" {
		return nil, nil
	}
	if data == "[DONE]" {
		return p.finish(), nil
	}

	var payload streamPayload
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return nil, fmt.Errorf("malformed chunk %q: %w", truncateForLog(data), err)
	}

	if payload.Usage != nil {
		p.usage = payload.Usage.toUsage()
	}
	if len(payload.Choices) == 0 {
		return nil, nil
	}

	choice := payload.Choices[0]
	for _, call := range choice.Delta.ToolCalls {
		if call.ID != "" {
			p.toolID = call.ID
		}
		if call.Function.Name != "" {
			p.toolName = call.Function.Name
		}
		p.toolArgs.WriteString(call.Function.Arguments)
	}
	if choice.Delta.Content != "" {
		return &llm.StreamChunk{Content: choice.Delta.Content}, nil
	}
	return nil, nil
}

// finish produces the terminal chunk once the stream signalled [DONE].
func (p *chunkParser) finish() *llm.StreamChunk {
	if p.toolName == "" {
		return &llm.StreamChunk{Finished: true, Usage: p.usage}
	}

	arguments := map[string]any{}
	if raw := p.toolArgs.String(); raw != "" {
		if err := json.Unmarshal([]byte(raw), &arguments); err != nil {
			return &llm.StreamChunk{
				Err: types.WrapError(types.ErrProtocol, err, "failed to decode tool call arguments for %q", p.toolName),
			}
		}
	}
	return &llm.StreamChunk{
		ToolCall: &types.ToolCall{ID: p.toolID, Name: p.toolName, Arguments: arguments},
		Usage:    p.usage,
	}
}

type responsePayload struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *usagePayload `json:"usage"`
}

// ParseResponse decodes a complete non-streaming response.
func (a *Adapter) ParseResponse(body []byte) ([]*llm.StreamChunk, error) {
	var payload responsePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}
	if len(payload.Choices) == 0 {
		return nil, fmt.Errorf("response contains no choices")
	}

	var usage *types.TokenUsage
	if payload.Usage != nil {
		usage = payload.Usage.toUsage()
	}

	message := payload.Choices[0].Message
	var chunks []*llm.StreamChunk
	if message.Content != "" {
		chunks = append(chunks, &llm.StreamChunk{Content: message.Content})
	}

	if len(message.ToolCalls) > 0 {
		call := message.ToolCalls[0]
		arguments := map[string]any{}
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &arguments); err != nil {
				return nil, fmt.Errorf("malformed tool call arguments: %w", err)
			}
		}
		chunks = append(chunks, &llm.StreamChunk{
			ToolCall: &types.ToolCall{ID: call.ID, Name: call.Function.Name, Arguments: arguments},
			Usage:    usage,
		})
		return chunks, nil
	}

	chunks = append(chunks, &llm.StreamChunk{Finished: true, Usage: usage})
	return chunks, nil
}

func truncateForLog(data string) string {
	if len(data) > 120 {
		return data[:120] + "..."
	}
	return data
}
