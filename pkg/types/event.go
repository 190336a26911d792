package types

import (
	"time"
)

// AgentEventType identifies the kind of event emitted during a turn.
type AgentEventType string

const (
	// EventTypeDelta carries an incremental piece of assistant text.
	EventTypeDelta AgentEventType = "delta"

	// EventTypeToolInvoked signals that the model requested a tool and
	// the engine is about to run it.
	EventTypeToolInvoked AgentEventType = "tool_invoked"

	// EventTypeToolResult carries the outcome of a tool invocation.
	EventTypeToolResult AgentEventType = "tool_result"

	// EventTypeCompleted ends a successful turn with the final text.
	EventTypeCompleted AgentEventType = "completed"

	// EventTypeFailed ends a turn that could not complete.
	EventTypeFailed AgentEventType = "failed"

	// EventTypeCancelled ends a turn stopped by the caller.
	EventTypeCancelled AgentEventType = "cancelled"
)

// AgentEvent is the engine's externally observable output. Every turn
// produces zero or more delta/tool events followed by exactly one
// terminal event (completed, failed, or cancelled).
type AgentEvent struct {
	Type      AgentEventType
	Content   string         // delta text, final text, tool output, or failure message
	ToolName  string         // tool_invoked, tool_result
	ToolArgs  map[string]any // tool_invoked
	IsError   bool           // tool_result: the content is a failure reason
	ErrorKind ErrorKind      // failed
	Usage     *TokenUsage    // completed, when the provider reported usage
	Timestamp time.Time
}

// NewDeltaEvent creates a delta event for a piece of streamed text.
func NewDeltaEvent(text string) *AgentEvent {
	return &AgentEvent{
		Type:      EventTypeDelta,
		Content:   text,
		Timestamp: time.Now(),
	}
}

// NewToolInvokedEvent creates an event announcing a tool invocation.
func NewToolInvokedEvent(name string, args map[string]any) *AgentEvent {
	return &AgentEvent{
		Type:      EventTypeToolInvoked,
		ToolName:  name,
		ToolArgs:  args,
		Timestamp: time.Now(),
	}
}

// NewToolResultEvent creates an event carrying a tool's outcome.
func NewToolResultEvent(name, output string, isError bool) *AgentEvent {
	return &AgentEvent{
		Type:      EventTypeToolResult,
		ToolName:  name,
		Content:   output,
		IsError:   isError,
		Timestamp: time.Now(),
	}
}

// NewCompletedEvent creates the terminal event for a successful turn.
func NewCompletedEvent(finalText string, usage *TokenUsage) *AgentEvent {
	return &AgentEvent{
		Type:      EventTypeCompleted,
		Content:   finalText,
		Usage:     usage,
		Timestamp: time.Now(),
	}
}

// NewFailedEvent creates the terminal event for a failed turn.
func NewFailedEvent(kind ErrorKind, message string) *AgentEvent {
	return &AgentEvent{
		Type:      EventTypeFailed,
		Content:   message,
		ErrorKind: kind,
		Timestamp: time.Now(),
	}
}

// NewCancelledEvent creates the terminal event for a cancelled turn.
// Partial assistant text accumulated before the cancel rides along in
// Content; it is not part of the session history.
func NewCancelledEvent(partial string) *AgentEvent {
	return &AgentEvent{
		Type:      EventTypeCancelled,
		Content:   partial,
		Timestamp: time.Now(),
	}
}

// IsTerminal reports whether the event ends a turn.
func (e *AgentEvent) IsTerminal() bool {
	switch e.Type {
	case EventTypeCompleted, EventTypeFailed, EventTypeCancelled:
		return true
	}
	return false
}

// IsDelta reports whether the event carries streamed assistant text.
func (e *AgentEvent) IsDelta() bool {
	return e.Type == EventTypeDelta
}
