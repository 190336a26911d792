package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidecardev/sidecar/pkg/config"
	"github.com/sidecardev/sidecar/pkg/types"
)

func TestForNameDispatch(t *testing.T) {
	for _, provider := range config.SupportedProviders() {
		t.Run(provider, func(t *testing.T) {
			adapter, err := ForName(provider)
			require.NoError(t, err)
			assert.Equal(t, provider, adapter.Provider())
		})
	}
}

func TestForNameUnsupported(t *testing.T) {
	_, err := ForName("mystery")
	require.Error(t, err)
	assert.Equal(t, types.ErrConfiguration, types.KindOf(err))
}

func TestAuthHeaderShapes(t *testing.T) {
	cfg := config.New(config.ProviderOpenAI)
	cfg.APIKey = "sk-test"

	openaiAdapter, err := ForName(config.ProviderOpenAI)
	require.NoError(t, err)
	assert.Equal(t, "Bearer sk-test", openaiAdapter.Headers(cfg).Get("Authorization"))

	anthropicAdapter, err := ForName(config.ProviderAnthropic)
	require.NoError(t, err)
	headers := anthropicAdapter.Headers(cfg)
	assert.Equal(t, "sk-test", headers.Get("x-api-key"))
	assert.Equal(t, "2023-06-01", headers.Get("anthropic-version"))
	assert.Empty(t, headers.Get("Authorization"))

	deepseekAdapter, err := ForName(config.ProviderDeepSeek)
	require.NoError(t, err)
	assert.Equal(t, "Bearer sk-test", deepseekAdapter.Headers(cfg).Get("Authorization"))
}
