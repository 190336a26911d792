package session

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/sidecardev/sidecar/pkg/config"
	"github.com/sidecardev/sidecar/pkg/llm"
	"github.com/sidecardev/sidecar/pkg/logging"
	"github.com/sidecardev/sidecar/pkg/security/workspace"
	"github.com/sidecardev/sidecar/pkg/tools"
	"github.com/sidecardev/sidecar/pkg/tools/coding"
	"github.com/sidecardev/sidecar/pkg/types"
)

// Manager owns the session table, the shared LLM client and tool
// registry, and the project lifecycle. Sessions created through the
// Manager share one workspace guard, so opening or closing a project
// affects all of them at once.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	client   *llm.Client
	registry *tools.Registry
	guard    *workspace.Guard
	log      *logging.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClient replaces the default LLM client.
func WithClient(client *llm.Client) ManagerOption {
	return func(m *Manager) {
		m.client = client
	}
}

// WithRegistry replaces the default coding tool registry.
func WithRegistry(registry *tools.Registry) ManagerOption {
	return func(m *Manager) {
		m.registry = registry
	}
}

// NewManager creates a manager with the standard coding tools wired to
// a shared workspace guard.
func NewManager(opts ...ManagerOption) (*Manager, error) {
	m := &Manager{
		sessions: make(map[string]*Session),
		guard:    workspace.NewGuard(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.client == nil {
		m.client = llm.NewClient()
	}
	if m.registry == nil {
		registry := tools.NewRegistry()
		for _, t := range coding.DefaultTools(m.guard) {
			if err := registry.Register(t); err != nil {
				return nil, err
			}
		}
		m.registry = registry
	}
	m.log, _ = logging.NewLogger("session-manager")
	return m, nil
}

// Guard exposes the shared workspace guard, for hosts that need to
// resolve paths the same way the tools do.
func (m *Manager) Guard() *workspace.Guard {
	return m.guard
}

// Create makes a new idle session from the given configuration.
// Creation is lenient: an unsupported provider or missing credentials
// surface when the first turn runs, not here.
func (m *Manager) Create(cfg config.ProviderConfig) *Session {
	s := newSession(uuid.NewString(), cfg, m.client, m.registry)

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	m.log.Infof("created session %s (provider=%s model=%s)", s.ID(), cfg.Provider, cfg.Model)
	return s
}

// Get looks up a session by id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, types.NewError(types.ErrSessionNotFound, "no session with id %q", id)
	}
	return s, nil
}

// List returns all sessions ordered by id.
func (m *Manager) List() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Rename sets a session's display name.
func (m *Manager) Rename(id, name string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	s.setName(name)
	return nil
}

// Clone creates a fresh session with the source session's current
// configuration. History, fragments and name do not carry over.
func (m *Manager) Clone(id string) (*Session, error) {
	src, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	return m.Create(src.Config()), nil
}

// Clear drops a session's history and fragments, keeping its
// configuration. Rejected while the session has a turn in flight.
func (m *Manager) Clear(id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	return s.ClearHistory()
}

// Destroy cancels any in-flight turn, closes the session's event
// channel and removes it from the table.
func (m *Manager) Destroy(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return types.NewError(types.ErrSessionNotFound, "no session with id %q", id)
	}
	s.destroy()
	m.log.Infof("destroyed session %s", id)
	return nil
}

// ProjectOpened points the shared guard at a project root. Tool
// execution in every session is confined to it from now on.
func (m *Manager) ProjectOpened(root string) error {
	if err := m.guard.Open(root); err != nil {
		return err
	}
	resolved, _ := m.guard.Root()
	m.log.Infof("project opened: %s", resolved)
	return nil
}

// ProjectClosed disarms the guard and drops every session's file
// context fragments, which referred to the closed project.
func (m *Manager) ProjectClosed() {
	m.guard.Close()

	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.budget.ClearFragments()
	}
	m.log.Infof("project closed")
}
