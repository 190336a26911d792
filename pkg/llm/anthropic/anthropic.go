// Package anthropic implements the llm.Adapter for the Anthropic
// Messages API. Request content is built with the official SDK's param
// types; the event stream is parsed from raw SSE.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/sidecardev/sidecar/pkg/config"
	"github.com/sidecardev/sidecar/pkg/llm"
	"github.com/sidecardev/sidecar/pkg/types"
)

const apiVersion = "2023-06-01"

// Adapter speaks the Anthropic Messages protocol.
type Adapter struct{}

// New creates an Anthropic adapter.
func New() *Adapter {
	return &Adapter{}
}

// Provider returns the provider id.
func (a *Adapter) Provider() string {
	return config.ProviderAnthropic
}

// Headers returns x-api-key authentication plus the API version pin.
func (a *Adapter) Headers(cfg config.ProviderConfig) http.Header {
	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("anthropic-version", apiVersion)
	if cfg.APIKey != "" {
		headers.Set("x-api-key", cfg.APIKey)
	}
	return headers
}

// NewRequest builds the Messages API HTTP request. System messages are
// lifted out of the history into the request-level system field, as
// the API requires.
func (a *Adapter) NewRequest(ctx context.Context, cfg config.ProviderConfig, req *llm.Request) (*http.Request, error) {
	messages, systemPrompt := convertMessages(req.Messages)

	body := map[string]any{
		"model":       cfg.Model,
		"max_tokens":  cfg.MaxTokens,
		"temperature": cfg.Temperature,
		"messages":    messages,
	}
	if systemPrompt != "" {
		body["system"] = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}
	if len(req.Tools) > 0 {
		body["tools"] = convertTools(req.Tools)
	}
	if req.Stream {
		body["stream"] = true
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

// convertMessages maps history messages onto Messages API params.
// System messages collapse into a single system prompt (last one
// wins); tool results become user-role tool_result blocks.
func convertMessages(messages []*types.Message) ([]anthropic.MessageParam, string) {
	var converted []anthropic.MessageParam
	var systemPrompt string

	for _, msg := range messages {
		switch msg.Role {
		case types.RoleSystem:
			systemPrompt = msg.Content
		case types.RoleUser:
			converted = append(converted, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		case types.RoleAssistant:
			if msg.ToolCall != nil {
				converted = append(converted, assistantToolUseMessage(msg))
				continue
			}
			if msg.Content != "" {
				converted = append(converted, anthropic.MessageParam{
					Role: anthropic.MessageParamRoleAssistant,
					Content: []anthropic.ContentBlockParamUnion{{
						OfText: &anthropic.TextBlockParam{Text: msg.Content},
					}},
				})
			}
		case types.RoleTool:
			if msg.ToolResult != nil {
				converted = append(converted, anthropic.MessageParam{
					Role: anthropic.MessageParamRoleUser,
					Content: []anthropic.ContentBlockParamUnion{{
						OfToolResult: &anthropic.ToolResultBlockParam{
							ToolUseID: msg.ToolResult.CallID,
							IsError:   anthropic.Bool(msg.ToolResult.IsError),
							Content: []anthropic.ToolResultBlockParamContentUnion{{
								OfText: &anthropic.TextBlockParam{Text: msg.ToolResult.Content},
							}},
						},
					}},
				})
			}
		}
	}

	return converted, systemPrompt
}

func assistantToolUseMessage(msg *types.Message) anthropic.MessageParam {
	var content []anthropic.ContentBlockParamUnion
	if msg.Content != "" {
		content = append(content, anthropic.ContentBlockParamUnion{
			OfText: &anthropic.TextBlockParam{Text: msg.Content},
		})
	}
	content = append(content, anthropic.ContentBlockParamUnion{
		OfToolUse: &anthropic.ToolUseBlockParam{
			ID:    msg.ToolCall.ID,
			Name:  msg.ToolCall.Name,
			Input: msg.ToolCall.Arguments,
		},
	})
	return anthropic.MessageParam{
		Role:    anthropic.MessageParamRoleAssistant,
		Content: content,
	}
}

func convertTools(specs []llm.ToolSpec) []anthropic.ToolUnionParam {
	converted := make([]anthropic.ToolUnionParam, 0, len(specs))
	for _, spec := range specs {
		tool := anthropic.ToolParam{
			Name:        spec.Name,
			Description: anthropic.String(spec.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: spec.Schema["properties"],
			},
		}
		converted = append(converted, anthropic.ToolUnionParam{OfTool: &tool})
	}
	return converted
}

// NewParser returns a parser for one event stream.
func (a *Adapter) NewParser() llm.ChunkParser {
	return &chunkParser{}
}

// chunkParser tracks the current content block and running usage
// across the Anthropic event sequence. The terminal chunk is produced
// on message_stop.
type chunkParser struct {
	toolID       string
	toolName     string
	toolJSON     strings.Builder
	inputTokens  int
	outputTokens int
}

type eventPayload struct {
	Type         string `json:"type"`
	ContentBlock struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"content_block"`
	Delta struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
		StopReason  string `json:"stop_reason"`
	} `json:"delta"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Message struct {
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	} `json:"message"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseLine handles one SSE line of the Messages event stream. The
// "event:" framing lines carry no payload and are skipped; all routing
// happens on the data payload's type field.
func (p *chunkParser) ParseLine(line string) (*llm.StreamChunk, error) {
	if !strings.HasPrefix(line, "data:") {
		return nil, nil
	}
	data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
	if data == "" {
		return nil, nil
	}

	var payload eventPayload
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return nil, fmt.Errorf("malformed event %q: %w", truncateForLog(data), err)
	}

	switch payload.Type {
	case "message_start":
		p.inputTokens = payload.Message.Usage.InputTokens
		return nil, nil
	case "content_block_start":
		if payload.ContentBlock.Type == "tool_use" {
			p.toolID = payload.ContentBlock.ID
			p.toolName = payload.ContentBlock.Name
		}
		return nil, nil
	case "content_block_delta":
		switch payload.Delta.Type {
		case "text_delta":
			if payload.Delta.Text != "" {
				return &llm.StreamChunk{Content: payload.Delta.Text}, nil
			}
		case "input_json_delta":
			p.toolJSON.WriteString(payload.Delta.PartialJSON)
		}
		return nil, nil
	case "message_delta":
		if payload.Usage.OutputTokens > 0 {
			p.outputTokens = payload.Usage.OutputTokens
		}
		return nil, nil
	case "message_stop":
		return p.finish(), nil
	case "error":
		return &llm.StreamChunk{
			Err: types.NewError(types.ErrProtocol, "provider stream error (%s): %s", payload.Error.Type, payload.Error.Message),
		}, nil
	default:
		// ping, content_block_stop and future event types
		return nil, nil
	}
}

func (p *chunkParser) finish() *llm.StreamChunk {
	usage := &types.TokenUsage{
		PromptTokens:     p.inputTokens,
		CompletionTokens: p.outputTokens,
		TotalTokens:      p.inputTokens + p.outputTokens,
	}

	if p.toolName == "" {
		return &llm.StreamChunk{Finished: true, Usage: usage}
	}

	arguments := map[string]any{}
	if raw := p.toolJSON.String(); raw != "" {
		if err := json.Unmarshal([]byte(raw), &arguments); err != nil {
			return &llm.StreamChunk{
				Err: types.WrapError(types.ErrProtocol, err, "failed to decode tool input for %q", p.toolName),
			}
		}
	}
	return &llm.StreamChunk{
		ToolCall: &types.ToolCall{ID: p.toolID, Name: p.toolName, Arguments: arguments},
		Usage:    usage,
	}
}

type responsePayload struct {
	Content []struct {
		Type  string          `json:"type"`
		Text  string          `json:"text"`
		ID    string          `json:"id"`
		Name  string          `json:"name"`
		Input json.RawMessage `json:"input"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// ParseResponse decodes a complete non-streaming response.
func (a *Adapter) ParseResponse(body []byte) ([]*llm.StreamChunk, error) {
	var payload responsePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}

	usage := &types.TokenUsage{
		PromptTokens:     payload.Usage.InputTokens,
		CompletionTokens: payload.Usage.OutputTokens,
		TotalTokens:      payload.Usage.InputTokens + payload.Usage.OutputTokens,
	}

	var chunks []*llm.StreamChunk
	var toolCall *types.ToolCall
	for _, block := range payload.Content {
		switch block.Type {
		case "text":
			if block.Text != "" {
				chunks = append(chunks, &llm.StreamChunk{Content: block.Text})
			}
		case "tool_use":
			arguments := map[string]any{}
			if len(block.Input) > 0 {
				if err := json.Unmarshal(block.Input, &arguments); err != nil {
					return nil, fmt.Errorf("malformed tool input: %w", err)
				}
			}
			toolCall = &types.ToolCall{ID: block.ID, Name: block.Name, Arguments: arguments}
		}
	}

	if toolCall != nil {
		chunks = append(chunks, &llm.StreamChunk{ToolCall: toolCall, Usage: usage})
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
