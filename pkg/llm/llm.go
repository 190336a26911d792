// Package llm defines the provider-independent contract between the
// engine and model backends: a uniform request, a uniform stream of
// chunks, and the Adapter interface each provider implements. The
// Client in this package owns all network I/O; adapters only translate
// between the uniform contract and one provider's wire format.
package llm

import (
	"context"
	"net/http"

	"github.com/sidecardev/sidecar/pkg/config"
	"github.com/sidecardev/sidecar/pkg/types"
)

// ToolSpec describes one callable tool to the provider.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any // JSON schema of the arguments object
}

// Request is a provider-independent completion request. Model,
// sampling and limit settings come from the session's ProviderConfig.
type Request struct {
	Messages []*types.Message
	Tools    []ToolSpec
	Stream   bool
}

// StreamChunk is the uniform unit of model output. Non-terminal chunks
// carry Content only. Exactly one terminal chunk ends every stream:
// Finished (normal completion), ToolCall (the model wants a tool run),
// Cancelled, or Err.
type StreamChunk struct {
	Content   string
	ToolCall  *types.ToolCall
	Usage     *types.TokenUsage
	Finished  bool
	Cancelled bool
	Err       error
}

// Terminal reports whether the chunk ends its stream.
func (c *StreamChunk) Terminal() bool {
	return c.Finished || c.Cancelled || c.ToolCall != nil || c.Err != nil
}

// Adapter translates between the uniform contract and one provider's
// wire format. Adapters are stateless and perform no I/O; per-stream
// parse state lives in the ChunkParser they hand out.
type Adapter interface {
	// Provider returns the provider id this adapter serves.
	Provider() string

	// Headers returns the authentication and content headers for the
	// provider.
	Headers(cfg config.ProviderConfig) http.Header

	// NewRequest builds the HTTP request for a completion call.
	NewRequest(ctx context.Context, cfg config.ProviderConfig, req *Request) (*http.Request, error)

	// NewParser returns a fresh parser for one response stream.
	NewParser() ChunkParser

	// ParseResponse decodes a complete non-streaming response body into
	// the chunks the equivalent stream would have produced, ending with
	// a terminal chunk.
	ParseResponse(body []byte) ([]*StreamChunk, error)
}

// ChunkParser consumes the lines of one SSE response stream.
type ChunkParser interface {
	// ParseLine translates a single line. A nil chunk with nil error
	// means the line carried nothing to surface. A non-nil error marks
	// the line malformed; the stream itself continues.
	ParseLine(line string) (*StreamChunk, error)
}
