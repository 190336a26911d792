package types

import (
	"errors"
	"fmt"
)

// ErrorKind is a stable failure classification. Kinds are part of the
// engine's external contract: hosts switch on them, so their values
// never change.
type ErrorKind string

const (
	ErrConfiguration    ErrorKind = "ConfigurationError"
	ErrNetwork          ErrorKind = "NetworkError"
	ErrProtocol         ErrorKind = "ProtocolError"
	ErrTool             ErrorKind = "ToolError"
	ErrSessionBusy      ErrorKind = "SessionBusy"
	ErrSessionNotFound  ErrorKind = "SessionNotFound"
	ErrToolLoopExceeded ErrorKind = "ToolLoopExceeded"
)

// AgentError is the error type surfaced by the engine. It pairs a
// stable kind with a human-readable message and an optional cause.
type AgentError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *AgentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the cause for errors.Is / errors.As chains.
func (e *AgentError) Unwrap() error {
	return e.Cause
}

// NewError creates an AgentError with a formatted message.
func NewError(kind ErrorKind, format string, args ...any) *AgentError {
	return &AgentError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates an AgentError wrapping an underlying cause.
func WrapError(kind ErrorKind, cause error, format string, args ...any) *AgentError {
	return &AgentError{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf returns the kind of the nearest AgentError in err's chain,
// or the empty string when there is none.
func KindOf(err error) ErrorKind {
	var agentErr *AgentError
	if errors.As(err, &agentErr) {
		return agentErr.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
