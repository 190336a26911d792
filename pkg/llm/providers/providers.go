// Package providers resolves provider ids to their wire adapters. The
// set is closed: dispatch happens by exact id and anything else is a
// configuration error.
package providers

import (
	"github.com/sidecardev/sidecar/pkg/config"
	"github.com/sidecardev/sidecar/pkg/llm"
	"github.com/sidecardev/sidecar/pkg/llm/anthropic"
	"github.com/sidecardev/sidecar/pkg/llm/deepseek"
	"github.com/sidecardev/sidecar/pkg/llm/openai"
	"github.com/sidecardev/sidecar/pkg/types"
)

// ForName returns the adapter for a provider id.
func ForName(name string) (llm.Adapter, error) {
	switch name {
	case config.ProviderOpenAI:
		return openai.New(), nil
	case config.ProviderAnthropic:
		return anthropic.New(), nil
	case config.ProviderDeepSeek:
		return deepseek.New(), nil
	default:
		return nil, types.NewError(types.ErrConfiguration, "unsupported provider %q", name)
	}
}
