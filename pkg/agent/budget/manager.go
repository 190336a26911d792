// Package budget keeps assembled prompts inside the provider's
// context window. It holds the session's file context fragments and
// bounds history plus fragments under a token ceiling: retention is
// newest first, the item straddling the boundary is truncated with an
// explicit marker, and everything older is dropped whole.
package budget

import (
	"fmt"
	"sync"

	"github.com/sidecardev/sidecar/pkg/llm/tokenizer"
	"github.com/sidecardev/sidecar/pkg/types"
)

// TruncationMarker is appended to content cut at the budget boundary.
// The text is fixed so assembly stays byte-identical across runs.
const TruncationMarker = "\n[... truncated to fit context window ...]"

// Estimator reports the token cost of a piece of text. It must be
// monotonic: more text never costs fewer tokens.
type Estimator func(text string) int

// Fragment is an open-file context snippet attached to the prompt.
// Fragments age by reference time: re-adding a path moves it to the
// newest position.
type Fragment struct {
	Path    string
	Content string
}

// Manager assembles bounded prompts for one session.
type Manager struct {
	mu          sync.Mutex
	ceiling     int
	maxMessages int
	estimate    Estimator
	fragments   []Fragment
}

// Option configures a Manager.
type Option func(*Manager)

// WithEstimator replaces the default tokenizer-backed estimator.
func WithEstimator(estimate Estimator) Option {
	return func(m *Manager) {
		m.estimate = estimate
	}
}

// WithMessageLimit caps how many history messages are considered at
// all, before token accounting. Zero means unlimited.
func WithMessageLimit(n int) Option {
	return func(m *Manager) {
		m.maxMessages = n
	}
}

// NewManager creates a budget manager with the given token ceiling.
func NewManager(ceiling int, opts ...Option) *Manager {
	m := &Manager{
		ceiling:  ceiling,
		estimate: tokenizer.CountTokens,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetCeiling updates the token ceiling, effective on the next
// Assemble call.
func (m *Manager) SetCeiling(ceiling int) {
	m.mu.Lock()
	m.ceiling = ceiling
	m.mu.Unlock()
}

// SetMessageLimit updates the history message cap, effective on the
// next Assemble call. Zero means unlimited.
func (m *Manager) SetMessageLimit(n int) {
	m.mu.Lock()
	m.maxMessages = n
	m.mu.Unlock()
}

// AddFragment attaches or refreshes a file context fragment. An
// existing path moves to the newest position.
func (m *Manager) AddFragment(path, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(path)
	m.fragments = append(m.fragments, Fragment{Path: path, Content: content})
}

// RemoveFragment drops the fragment for a path, reporting whether one
// was present.
func (m *Manager) RemoveFragment(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	before := len(m.fragments)
	m.removeLocked(path)
	return len(m.fragments) != before
}

func (m *Manager) removeLocked(path string) {
	for i, f := range m.fragments {
		if f.Path == path {
			m.fragments = append(m.fragments[:i], m.fragments[i+1:]...)
			return
		}
	}
}

// ClearFragments drops all fragments.
func (m *Manager) ClearFragments() {
	m.mu.Lock()
	m.fragments = nil
	m.mu.Unlock()
}

// Fragments returns a copy of the current fragments, oldest first.
func (m *Manager) Fragments() []Fragment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Fragment, len(m.fragments))
	copy(out, m.fragments)
	return out
}

// Assemble builds the bounded prompt from the session history and the
// attached fragments. Fragments render as system messages ahead of the
// history; equally aged fragments keep their insertion order. The
// returned estimate never exceeds the ceiling, and identical inputs
// produce identical output.
func (m *Manager) Assemble(history []*types.Message) ([]*types.Message, int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maxMessages > 0 && len(history) > m.maxMessages {
		history = history[len(history)-m.maxMessages:]
	}

	// Candidate items oldest to newest: fragments age before the
	// live conversation.
	candidates := make([]*types.Message, 0, len(m.fragments)+len(history))
	for _, f := range m.fragments {
		candidates = append(candidates, types.NewSystemMessage(renderFragment(f)))
	}
	candidates = append(candidates, history...)

	var kept []*types.Message
	used := 0
	for i := len(candidates) - 1; i >= 0; i-- {
		item := candidates[i]
		cost := m.estimate(payloadText(item))
		if used+cost <= m.ceiling {
			kept = append(kept, item)
			used += cost
			continue
		}

		if truncated, truncatedCost, ok := m.truncateItem(item, m.ceiling-used); ok {
			kept = append(kept, truncated)
			used += truncatedCost
		}
		break
	}

	// kept was collected newest first; restore chronological order
	for left, right := 0, len(kept)-1; left < right; left, right = left+1, right-1 {
		kept[left], kept[right] = kept[right], kept[left]
	}
	return kept, used
}

func renderFragment(f Fragment) string {
	return fmt.Sprintf("Open file %s:\n%s", f.Path, f.Content)
}

// payloadText is the text an adapter will put on the wire for the
// message, which is what truncation must operate on.
func payloadText(msg *types.Message) string {
	if msg.Role == types.RoleTool && msg.ToolResult != nil {
		return msg.ToolResult.Content
	}
	return msg.Content
}

// truncateItem cuts the boundary item down to the remaining budget and
// appends the marker. It reports false when not even a useful prefix
// plus the marker fits, in which case the item is dropped whole.
func (m *Manager) truncateItem(msg *types.Message, remaining int) (*types.Message, int, bool) {
	if remaining <= 0 {
		return nil, 0, false
	}
	text := payloadText(msg)

	runes := []rune(text)
	cut := len(runes)
	if full := m.estimate(text); full > remaining && full > 0 {
		cut = len(runes) * remaining / full
	}

	for cut > 0 {
		candidate := string(runes[:cut]) + TruncationMarker
		if cost := m.estimate(candidate); cost <= remaining {
			return withPayload(msg, candidate), cost, true
		}
		cut -= cut/10 + 1
	}
	return nil, 0, false
}

func withPayload(msg *types.Message, text string) *types.Message {
	clone := msg.Clone()
	clone.Content = text
	if clone.Role == types.RoleTool && clone.ToolResult != nil {
		clone.ToolResult.Content = text
	}
	return clone
}
