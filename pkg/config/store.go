package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/sidecardev/sidecar/pkg/types"
)

// Settings is the on-disk shape of the configuration file: one block
// per provider plus the id of the active one.
type Settings struct {
	Active    string                    `yaml:"active"`
	Providers map[string]ProviderConfig `yaml:"providers"`
}

// FileStore persists Settings to a YAML file.
type FileStore struct {
	path     string
	mu       sync.RWMutex
	settings Settings
}

// NewFileStore creates a store backed by the given path, defaulting to
// ~/.sidecar/config.yaml. A missing file is not an error; the store
// starts empty and is created on the first Save.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(homeDir, ".sidecar", "config.yaml")
	}

	store := &FileStore{
		path:     path,
		settings: Settings{Providers: make(map[string]ProviderConfig)},
	}

	if err := store.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	return store, nil
}

// Load reads the settings file from disk.
func (s *FileStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.settings = Settings{Providers: make(map[string]ProviderConfig)}
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return fmt.Errorf("failed to decode config file: %w", err)
	}
	if settings.Providers == nil {
		settings.Providers = make(map[string]ProviderConfig)
	}

	s.settings = settings
	return nil
}

// Save writes the settings to disk atomically.
func (s *FileStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(s.settings)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp config file: %w", err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace config file: %w", err)
	}

	return nil
}

// SetProvider stores or replaces one provider's configuration block.
func (s *FileStore) SetProvider(cfg ProviderConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.Providers[cfg.Provider] = cfg
}

// Provider returns the stored block for a provider id.
func (s *FileStore) Provider(id string) (ProviderConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.settings.Providers[id]
	return cfg, ok
}

// SetActive marks a provider as the one new sessions should use.
func (s *FileStore) SetActive(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.Active = id
}

// Active returns the active provider id, empty when unset.
func (s *FileStore) Active() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Active
}

// ActiveConfig resolves the active provider's configuration with
// defaults applied. A stored block is not required: any supported
// provider id resolves to its defaults.
func (s *FileStore) ActiveConfig() (ProviderConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id := s.settings.Active
	if id == "" {
		return ProviderConfig{}, types.NewError(types.ErrConfiguration, "no active provider configured")
	}
	if cfg, ok := s.settings.Providers[id]; ok {
		cfg.Provider = id
		return cfg.WithDefaults(), nil
	}
	if !IsSupported(id) {
		return ProviderConfig{}, types.NewError(types.ErrConfiguration, "unsupported provider %q", id)
	}
	return New(id), nil
}

// Path returns the file path backing the store.
func (s *FileStore) Path() string {
	return s.path
}
