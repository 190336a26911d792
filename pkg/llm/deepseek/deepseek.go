// Package deepseek implements the llm.Adapter for DeepSeek. The wire
// format is OpenAI-compatible, so the adapter reuses the OpenAI
// request builder and stream parser under its own provider id; only
// the configuration defaults (endpoint, model) differ.
package deepseek

import (
	"github.com/sidecardev/sidecar/pkg/config"
	"github.com/sidecardev/sidecar/pkg/llm/openai"
)

// Adapter speaks the DeepSeek chat completions protocol.
type Adapter struct {
	*openai.Adapter
}

// New creates a DeepSeek adapter.
func New() *Adapter {
	return &Adapter{Adapter: openai.New()}
}

// Provider returns the provider id.
func (a *Adapter) Provider() string {
	return config.ProviderDeepSeek
}
