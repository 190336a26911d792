// Package session implements the conversation engine: each Session
// owns one conversation's history, configuration snapshot and the
// single in-flight turn, and the Manager owns the process-wide session
// table together with the project lifecycle.
package session

import (
	"context"
	"sync"

	"github.com/sidecardev/sidecar/pkg/agent/budget"
	"github.com/sidecardev/sidecar/pkg/config"
	"github.com/sidecardev/sidecar/pkg/llm"
	"github.com/sidecardev/sidecar/pkg/logging"
	"github.com/sidecardev/sidecar/pkg/tools"
	"github.com/sidecardev/sidecar/pkg/types"
)

// State is the session's position in the turn lifecycle. A session is
// Idle between turns; a turn moves through Requesting, Streaming and
// ToolRunning (the latter two possibly repeating) before the session
// returns to Idle.
type State string

const (
	StateIdle        State = "idle"
	StateRequesting  State = "requesting"
	StateStreaming   State = "streaming"
	StateToolRunning State = "tool_running"
)

const defaultSystemPrompt = "You are a coding assistant working inside the user's project. " +
	"Use the available tools to read and modify project files when the task calls for it, " +
	"and keep answers grounded in the actual code."

// Session is one conversation. At most one turn is in flight at any
// time; a second SendUserMessage while busy is rejected. All output of
// a turn arrives on the Events channel, which the host must drain.
type Session struct {
	id string

	mu         sync.Mutex
	name       string
	cfg        config.ProviderConfig
	history    []*types.Message
	state      State
	cancelTurn context.CancelFunc
	seq        int

	client   *llm.Client
	registry *tools.Registry
	budget   *budget.Manager
	events   chan *types.AgentEvent
	log      *logging.Logger

	closed    chan struct{}
	closeOnce sync.Once
	turnDone  sync.WaitGroup
}

func newSession(id string, cfg config.ProviderConfig, client *llm.Client, registry *tools.Registry) *Session {
	cfg = cfg.WithDefaults()
	s := &Session{
		id:       id,
		cfg:      cfg,
		state:    StateIdle,
		client:   client,
		registry: registry,
		budget: budget.NewManager(cfg.ContextTokens,
			budget.WithMessageLimit(cfg.MaxHistoryMessages)),
		events: make(chan *types.AgentEvent, 64),
		closed: make(chan struct{}),
	}
	s.log, _ = logging.NewLogger("session")
	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Name returns the display name, empty unless renamed.
func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

func (s *Session) setName(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Events returns the session's event stream. Events are emitted in
// order; consumers must drain the channel while a turn runs.
func (s *Session) Events() <-chan *types.AgentEvent {
	return s.events
}

// Config returns the configuration snapshot the next turn will use.
func (s *Session) Config() config.ProviderConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// UpdateConfig replaces the configuration snapshot. The change applies
// from the next turn; a turn already in flight keeps the snapshot it
// started with, including its context budget limits.
func (s *Session) UpdateConfig(cfg config.ProviderConfig) error {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	return nil
}

// History returns a copy of the conversation history.
func (s *Session) History() []*types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.Message, len(s.history))
	copy(out, s.history)
	return out
}

// SendUserMessage appends the user message and starts a turn. It
// returns synchronously: SessionBusy when a turn is already in
// flight, nil once the turn is launched. Everything else the turn
// produces arrives as events.
func (s *Session) SendUserMessage(text string) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return types.NewError(types.ErrSessionBusy, "a turn is already in flight")
	}

	s.seq++
	msg := types.NewUserMessage(text)
	msg.Seq = s.seq
	s.history = append(s.history, msg)
	baseline := len(s.history)

	s.state = StateRequesting
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelTurn = cancel
	cfg := s.cfg
	s.mu.Unlock()

	// The budget limits are part of the turn's snapshot: a config
	// update while this turn runs must not change its assembly.
	s.budget.SetCeiling(cfg.ContextTokens)
	s.budget.SetMessageLimit(cfg.MaxHistoryMessages)

	s.turnDone.Add(1)
	go s.runTurn(ctx, cfg, baseline)
	return nil
}

// CancelTurn requests cancellation of the in-flight turn. It is a
// no-op when the session is idle. The turn ends with a cancelled
// event; history keeps the pending user message only.
func (s *Session) CancelTurn() {
	s.mu.Lock()
	cancel := s.cancelTurn
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// ClearHistory drops the conversation history and context fragments
// but keeps the configuration. Rejected while a turn is in flight.
func (s *Session) ClearHistory() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return types.NewError(types.ErrSessionBusy, "cannot clear history while a turn is in flight")
	}
	s.history = nil
	s.seq = 0
	s.budget.ClearFragments()
	return nil
}

// AddFileContext attaches (or refreshes) an open-file fragment that
// prompt assembly will include subject to the context budget.
func (s *Session) AddFileContext(path, content string) {
	s.budget.AddFragment(path, content)
}

// DropFileContext removes an open-file fragment.
func (s *Session) DropFileContext(path string) {
	s.budget.RemoveFragment(path)
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// emit delivers an event, or drops it once the session is destroyed.
// The events channel itself is only closed after the turn goroutine
// has exited, so this send can never hit a closed channel.
func (s *Session) emit(event *types.AgentEvent) {
	select {
	case s.events <- event:
	case <-s.closed:
	}
}

func (s *Session) destroy() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.CancelTurn()
		s.turnDone.Wait()
		close(s.events)
	})
}
