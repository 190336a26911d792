package session

import (
	"context"
	"errors"
	"strings"

	"github.com/sidecardev/sidecar/pkg/config"
	"github.com/sidecardev/sidecar/pkg/llm"
	"github.com/sidecardev/sidecar/pkg/llm/providers"
	"github.com/sidecardev/sidecar/pkg/tools"
	"github.com/sidecardev/sidecar/pkg/types"
)

// runTurn drives one turn to its terminal event. The turn alternates
// between model streaming and tool execution until the model finishes
// with text, the tool budget runs out, the caller cancels, or an error
// ends it. History mutations from a turn that does not complete are
// rolled back to the baseline, so the pending user message survives
// but partial assistant output does not.
func (s *Session) runTurn(ctx context.Context, cfg config.ProviderConfig, baseline int) {
	defer s.turnDone.Done()
	defer s.finishTurn()

	adapter, err := providers.ForName(cfg.Provider)
	if err != nil {
		s.emit(types.NewFailedEvent(types.KindOf(err), err.Error()))
		return
	}

	toolSpecs := s.toolSpecs()
	toolCalls := 0

	for {
		prompt, promptTokens := s.assemblePrompt()
		s.log.Debugf("turn request: session=%s provider=%s messages=%d prompt_tokens=%d",
			s.id, cfg.Provider, len(prompt), promptTokens)

		chunks, err := s.client.Stream(ctx, adapter, cfg, &llm.Request{
			Messages: prompt,
			Tools:    toolSpecs,
			Stream:   cfg.Stream,
		})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				s.rollback(baseline)
				s.emit(types.NewCancelledEvent(""))
				return
			}
			s.rollback(baseline)
			s.emit(types.NewFailedEvent(types.KindOf(err), err.Error()))
			return
		}

		s.setState(StateStreaming)
		var assistantText strings.Builder
		var terminal *llm.StreamChunk

		for chunk := range chunks {
			if chunk.Content != "" {
				assistantText.WriteString(chunk.Content)
				s.emit(types.NewDeltaEvent(chunk.Content))
			}
			if chunk.Terminal() {
				terminal = chunk
				break
			}
		}
		if terminal == nil {
			// channel closed without a terminal; the client guarantees
			// this does not happen, treat it as a protocol failure
			s.rollback(baseline)
			s.emit(types.NewFailedEvent(types.ErrProtocol, "stream ended without a terminal chunk"))
			return
		}

		switch {
		case terminal.Cancelled:
			s.rollback(baseline)
			s.emit(types.NewCancelledEvent(assistantText.String()))
			return

		case terminal.Err != nil:
			s.rollback(baseline)
			s.emit(types.NewFailedEvent(types.KindOf(terminal.Err), terminal.Err.Error()))
			return

		case terminal.ToolCall != nil:
			if toolCalls >= cfg.MaxToolCalls {
				s.rollback(baseline)
				s.emit(types.NewFailedEvent(types.ErrToolLoopExceeded,
					"tool call limit reached: the model requested more than the configured maximum"))
				return
			}
			toolCalls++
			if done := s.runToolCall(ctx, assistantText.String(), terminal.ToolCall, baseline); done {
				return
			}

		default:
			finalText := assistantText.String()
			s.appendMessage(types.NewAssistantMessage(finalText))
			s.emit(types.NewCompletedEvent(finalText, terminal.Usage))
			return
		}
	}
}

// runToolCall executes one requested tool and feeds the result back
// into history. It reports true when the turn must stop (cancelled
// mid-execution); otherwise the turn loops back to the model.
func (s *Session) runToolCall(ctx context.Context, assistantText string, call *types.ToolCall, baseline int) bool {
	s.appendMessage(types.NewToolCallMessage(assistantText, call))
	s.emit(types.NewToolInvokedEvent(call.Name, call.Arguments))
	s.setState(StateToolRunning)
	s.log.Infof("running tool %s for session %s", call.Name, s.id)

	result := s.registry.Execute(ctx, call.Name, call.Arguments)
	if ctx.Err() != nil {
		s.rollback(baseline)
		s.emit(types.NewCancelledEvent(""))
		return true
	}

	s.emit(types.NewToolResultEvent(call.Name, result.Payload(), result.Failed()))
	s.appendMessage(types.NewToolResultMessage(&types.ToolResult{
		CallID:  call.ID,
		Name:    call.Name,
		Content: result.Payload(),
		IsError: result.Failed(),
	}))
	s.setState(StateRequesting)
	return false
}

// assemblePrompt builds the bounded prompt: the fixed system prompt
// rides outside the budget, fragments and history inside it.
func (s *Session) assemblePrompt() ([]*types.Message, int) {
	s.mu.Lock()
	history := make([]*types.Message, len(s.history))
	copy(history, s.history)
	s.mu.Unlock()

	bounded, used := s.budget.Assemble(history)
	prompt := make([]*types.Message, 0, len(bounded)+1)
	prompt = append(prompt, types.NewSystemMessage(defaultSystemPrompt))
	prompt = append(prompt, bounded...)
	return prompt, used
}

func (s *Session) toolSpecs() []llm.ToolSpec {
	list := s.registry.List()
	specs := make([]llm.ToolSpec, 0, len(list))
	for _, t := range list {
		specs = append(specs, llm.ToolSpec{
			Name:        t.Name(),
			Description: t.Description(),
			Schema:      tools.Schema(t),
		})
	}
	return specs
}

func (s *Session) appendMessage(msg *types.Message) {
	s.mu.Lock()
	s.seq++
	msg.Seq = s.seq
	s.history = append(s.history, msg)
	s.mu.Unlock()
}

func (s *Session) rollback(baseline int) {
	s.mu.Lock()
	if len(s.history) > baseline {
		s.history = s.history[:baseline]
	}
	s.mu.Unlock()
}

func (s *Session) finishTurn() {
	s.mu.Lock()
	s.state = StateIdle
	if s.cancelTurn != nil {
		s.cancelTurn()
		s.cancelTurn = nil
	}
	s.mu.Unlock()
}
