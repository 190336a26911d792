package llm_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidecardev/sidecar/pkg/config"
	"github.com/sidecardev/sidecar/pkg/llm"
	"github.com/sidecardev/sidecar/pkg/llm/openai"
	"github.com/sidecardev/sidecar/pkg/types"
)

func testConfig(url string) config.ProviderConfig {
	cfg := config.New(config.ProviderOpenAI)
	cfg.BaseURL = url
	cfg.APIKey = "sk-test"
	return cfg
}

func sseHandler(t *testing.T, lines ...string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n\n", line)
			flusher.Flush()
		}
	}
}

func collect(t *testing.T, chunks <-chan *llm.StreamChunk) (string, *llm.StreamChunk) {
	t.Helper()
	var content string
	var terminal *llm.StreamChunk
	for chunk := range chunks {
		if chunk.Terminal() {
			terminal = chunk
			continue
		}
		content += chunk.Content
	}
	require.NotNil(t, terminal, "stream must deliver a terminal chunk")
	return content, terminal
}

func TestStreamDeliversDeltasThenTerminal(t *testing.T) {
	server := httptest.NewServer(sseHandler(t,
		`data: {"choices":[{"delta":{"content":"Hel"}}]}`,
		`data: {"choices":[{"delta":{"content":"lo"}}]}`,
		`data: [DONE]`,
	))
	defer server.Close()

	client := llm.NewClient()
	chunks, err := client.Stream(context.Background(), openai.New(), testConfig(server.URL), &llm.Request{
		Messages: []*types.Message{types.NewUserMessage("hi")},
		Stream:   true,
	})
	require.NoError(t, err)

	content, terminal := collect(t, chunks)
	assert.Equal(t, "Hello", content)
	assert.True(t, terminal.Finished)
}

func TestStreamSkipsMalformedChunks(t *testing.T) {
	server := httptest.NewServer(sseHandler(t,
		`data: {"choices":[{"delta":{"content":"ok"}}]}`,
		`data: {"choices":[{"delta":`,
		`data: {"choices":[{"delta":{"content":"!"}}]}`,
		`data: [DONE]`,
	))
	defer server.Close()

	client := llm.NewClient()
	chunks, err := client.Stream(context.Background(), openai.New(), testConfig(server.URL), &llm.Request{Stream: true})
	require.NoError(t, err)

	content, terminal := collect(t, chunks)
	assert.Equal(t, "ok!", content)
	assert.True(t, terminal.Finished)
}

func TestStreamEndWithoutTerminalIsProtocolError(t *testing.T) {
	server := httptest.NewServer(sseHandler(t,
		`data: {"choices":[{"delta":{"content":"partial"}}]}`,
	))
	defer server.Close()

	client := llm.NewClient()
	chunks, err := client.Stream(context.Background(), openai.New(), testConfig(server.URL), &llm.Request{Stream: true})
	require.NoError(t, err)

	_, terminal := collect(t, chunks)
	require.Error(t, terminal.Err)
	assert.Equal(t, types.ErrProtocol, types.KindOf(terminal.Err))
}

func TestStreamNonStreamingMode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"content":"full answer"},"finish_reason":"stop"}],"usage":{"prompt_tokens":1,"completion_tokens":2,"total_tokens":3}}`)
	}))
	defer server.Close()

	client := llm.NewClient()
	chunks, err := client.Stream(context.Background(), openai.New(), testConfig(server.URL), &llm.Request{Stream: false})
	require.NoError(t, err)

	content, terminal := collect(t, chunks)
	assert.Equal(t, "full answer", content)
	assert.True(t, terminal.Finished)
	assert.Equal(t, 3, terminal.Usage.TotalTokens)
}

func TestStreamStatusErrors(t *testing.T) {
	tests := []struct {
		status  int
		wantMsg string
	}{
		{http.StatusNotFound, "404"},
		{http.StatusUnauthorized, "401"},
		{http.StatusForbidden, "403"},
		{http.StatusInternalServerError, "500"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status %d", tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer server.Close()

			client := llm.NewClient()
			_, err := client.Stream(context.Background(), openai.New(), testConfig(server.URL), &llm.Request{Stream: true})
			require.Error(t, err)
			assert.Equal(t, types.ErrNetwork, types.KindOf(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestStreamMissingEndpoint(t *testing.T) {
	cfg := testConfig("")
	cfg.BaseURL = ""

	client := llm.NewClient()
	_, err := client.Stream(context.Background(), openai.New(), cfg, &llm.Request{Stream: true})
	require.Error(t, err)
	assert.Equal(t, types.ErrConfiguration, types.KindOf(err))
}

func TestStreamTimeoutIsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// drain the body so the server detects the client disconnect
		// and cancels r.Context(); otherwise server.Close deadlocks
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := llm.NewClient()
	_, err := client.Stream(ctx, openai.New(), testConfig(server.URL), &llm.Request{Stream: true})
	require.Error(t, err)
	assert.Equal(t, types.ErrNetwork, types.KindOf(err))
	assert.Contains(t, err.Error(), "timeout")
}

func TestStreamTimeoutMidBodyIsTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		flusher.Flush()
		<-r.Context().Done()
	}))
	defer server.Close()

	// the deadline comes from the HTTP client, not the caller's context,
	// so it expires as a net.Error during the body read
	client := llm.NewClient(llm.WithHTTPClient(&http.Client{Timeout: 100 * time.Millisecond}))
	chunks, err := client.Stream(context.Background(), openai.New(), testConfig(server.URL), &llm.Request{Stream: true})
	require.NoError(t, err)

	content, terminal := collect(t, chunks)
	assert.Equal(t, "Hel", content)
	require.Error(t, terminal.Err)
	assert.Equal(t, types.ErrNetwork, types.KindOf(terminal.Err))
	assert.Contains(t, terminal.Err.Error(), "timeout")
	assert.NotContains(t, terminal.Err.Error(), "stream read failed")
}

func TestStreamCancelMidStream(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"first\"}}]}\n\n")
		flusher.Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	client := llm.NewClient()
	chunks, err := client.Stream(ctx, openai.New(), testConfig(server.URL), &llm.Request{Stream: true})
	require.NoError(t, err)

	first := <-chunks
	require.NotNil(t, first)
	assert.Equal(t, "first", first.Content)

	cancel()

	var terminal *llm.StreamChunk
	for chunk := range chunks {
		if chunk.Terminal() {
			terminal = chunk
		}
	}
	require.NotNil(t, terminal)
	assert.True(t, terminal.Cancelled)
}

func TestProbeConnection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer server.Close()

	client := llm.NewClient()
	assert.NoError(t, client.ProbeConnection(context.Background(), openai.New(), testConfig(server.URL)))

	server.Close()
	err := client.ProbeConnection(context.Background(), openai.New(), testConfig(server.URL))
	require.Error(t, err)
	assert.Equal(t, types.ErrNetwork, types.KindOf(err))
}
