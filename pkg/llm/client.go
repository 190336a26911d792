package llm

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/sidecardev/sidecar/pkg/config"
	"github.com/sidecardev/sidecar/pkg/logging"
	"github.com/sidecardev/sidecar/pkg/types"
)

const maxErrorBodyBytes = 512

// Client sends completion requests and turns provider responses into
// the uniform chunk stream. One Client is safe for concurrent use by
// any number of sessions.
type Client struct {
	httpClient *http.Client
	log        *logging.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a streaming client.
func NewClient(opts ...ClientOption) *Client {
	client := &Client{
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(client)
	}
	client.log, _ = logging.NewLogger("llm-client")
	return client
}

// Stream sends the request through the adapter and returns a channel
// of chunks. Exactly one terminal chunk is delivered, after which the
// channel is closed. Errors establishing the request or connection are
// returned synchronously instead; a context.Canceled return means the
// caller cancelled before any output was produced.
func (c *Client) Stream(ctx context.Context, adapter Adapter, cfg config.ProviderConfig, req *Request) (<-chan *StreamChunk, error) {
	if cfg.BaseURL == "" {
		return nil, types.NewError(types.ErrConfiguration, "missing endpoint for provider %q", cfg.Provider)
	}

	httpReq, err := adapter.NewRequest(ctx, cfg, req)
	if err != nil {
		return nil, types.WrapError(types.ErrConfiguration, err, "failed to build %s request", adapter.Provider())
	}

	c.log.Debugf("sending %s request to %s (model=%s stream=%v tools=%d)",
		adapter.Provider(), cfg.BaseURL, cfg.Model, req.Stream, len(req.Tools))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.transportError(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		resp.Body.Close()
		return nil, statusError(resp.StatusCode, body)
	}

	chunks := make(chan *StreamChunk, 16)
	if req.Stream {
		go c.consumeStream(ctx, adapter.NewParser(), resp.Body, chunks)
	} else {
		go c.consumeResponse(ctx, adapter, resp.Body, chunks)
	}
	return chunks, nil
}

// consumeStream scans SSE lines until a terminal chunk is produced.
// Malformed non-terminal payloads are logged and skipped; a stream
// that ends without any terminal is a protocol failure.
func (c *Client) consumeStream(ctx context.Context, parser ChunkParser, body io.ReadCloser, chunks chan<- *StreamChunk) {
	defer close(chunks)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			chunks <- cancelChunk(ctx)
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}

		chunk, err := parser.ParseLine(line)
		if err != nil {
			c.log.Warnf("skipping malformed stream chunk: %v", err)
			continue
		}
		if chunk == nil {
			continue
		}

		select {
		case chunks <- chunk:
		case <-ctx.Done():
			chunks <- cancelChunk(ctx)
			return
		}
		if chunk.Terminal() {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			chunks <- cancelChunk(ctx)
			return
		}
		if isTimeout(err) {
			chunks <- &StreamChunk{Err: types.NewError(types.ErrNetwork, "timeout")}
			return
		}
		chunks <- &StreamChunk{Err: types.WrapError(types.ErrNetwork, err, "stream read failed")}
		return
	}
	chunks <- &StreamChunk{Err: types.NewError(types.ErrProtocol, "stream ended without a terminal chunk")}
}

// consumeResponse handles non-streaming mode: the full body is decoded
// into the chunks the equivalent stream would have produced.
func (c *Client) consumeResponse(ctx context.Context, adapter Adapter, body io.ReadCloser, chunks chan<- *StreamChunk) {
	defer close(chunks)
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		if ctx.Err() != nil {
			chunks <- cancelChunk(ctx)
			return
		}
		if isTimeout(err) {
			chunks <- &StreamChunk{Err: types.NewError(types.ErrNetwork, "timeout")}
			return
		}
		chunks <- &StreamChunk{Err: types.WrapError(types.ErrNetwork, err, "response read failed")}
		return
	}

	parsed, err := adapter.ParseResponse(data)
	if err != nil {
		chunks <- &StreamChunk{Err: types.WrapError(types.ErrProtocol, err, "failed to decode %s response", adapter.Provider())}
		return
	}
	for _, chunk := range parsed {
		select {
		case chunks <- chunk:
		case <-ctx.Done():
			chunks <- cancelChunk(ctx)
			return
		}
	}
}

// ProbeConnection checks whether the configured endpoint is reachable
// with the provider's headers. Any HTTP response counts as reachable;
// only transport-level failures are reported.
func (c *Client) ProbeConnection(ctx context.Context, adapter Adapter, cfg config.ProviderConfig) error {
	if cfg.BaseURL == "" {
		return types.NewError(types.ErrConfiguration, "missing endpoint for provider %q", cfg.Provider)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, cfg.BaseURL, nil)
	if err != nil {
		return types.WrapError(types.ErrConfiguration, err, "invalid endpoint %q", cfg.BaseURL)
	}
	for key, values := range adapter.Headers(cfg) {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.transportError(ctx, err)
	}
	resp.Body.Close()
	return nil
}

func (c *Client) transportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewError(types.ErrNetwork, "timeout")
	}
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return types.NewError(types.ErrNetwork, "timeout")
	}
	return types.WrapError(types.ErrNetwork, err, "request failed")
}

// isTimeout reports whether a body read failed because a deadline
// expired (http.Client.Timeout surfaces as a net.Error mid-read, not
// as a context error).
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func cancelChunk(ctx context.Context) *StreamChunk {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &StreamChunk{Err: types.NewError(types.ErrNetwork, "timeout")}
	}
	return &StreamChunk{Cancelled: true}
}

func statusError(status int, body []byte) error {
	switch {
	case status == http.StatusNotFound:
		return types.NewError(types.ErrNetwork, "endpoint not found (HTTP 404): check the base URL")
	case status == http.StatusUnauthorized:
		return types.NewError(types.ErrNetwork, "authentication failed (HTTP 401): check the API key")
	case status == http.StatusForbidden:
		return types.NewError(types.ErrNetwork, "access denied (HTTP 403): the API key lacks permissions")
	case status >= 500:
		return types.NewError(types.ErrNetwork, "provider server error (HTTP %d): %s", status, errorDetail(body))
	default:
		return types.NewError(types.ErrNetwork, "request rejected (HTTP %d): %s", status, errorDetail(body))
	}
}

func errorDetail(body []byte) string {
	detail := strings.TrimSpace(string(body))
	if detail == "" {
		return "no error detail"
	}
	return fmt.Sprintf("%.512s", detail)
}
