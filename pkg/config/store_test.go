package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidecardev/sidecar/pkg/types"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	store, err := NewFileStore(path)
	require.NoError(t, err)

	cfg := New(ProviderDeepSeek)
	cfg.APIKey = "sk-test"
	cfg.MaxToolCalls = 4
	store.SetProvider(cfg)
	store.SetActive(ProviderDeepSeek)
	require.NoError(t, store.Save())

	reloaded, err := NewFileStore(path)
	require.NoError(t, err)

	got, err := reloaded.ActiveConfig()
	require.NoError(t, err)
	assert.Equal(t, ProviderDeepSeek, got.Provider)
	assert.Equal(t, "sk-test", got.APIKey)
	assert.Equal(t, 4, got.MaxToolCalls)
	assert.Equal(t, "deepseek-chat", got.Model)
}

func TestFileStoreMissingFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent", "config.yaml")

	store, err := NewFileStore(path)
	require.NoError(t, err)

	_, err = store.ActiveConfig()
	require.Error(t, err)
	assert.Equal(t, types.ErrConfiguration, types.KindOf(err))
}

func TestFileStoreActiveWithoutBlockUsesDefaults(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	store.SetActive(ProviderAnthropic)
	cfg, err := store.ActiveConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://api.anthropic.com/v1/messages", cfg.BaseURL)
	assert.True(t, cfg.Stream)
}

func TestFileStoreRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: [unclosed"), 0600))

	_, err := NewFileStore(path)
	assert.Error(t, err)
}
