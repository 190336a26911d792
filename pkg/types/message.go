package types

// MessageRole identifies the author of a conversation message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// ToolCall is a provider-requested tool invocation, decoded from the wire.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ToolResult carries the outcome of a tool invocation back to the model.
// Content holds the payload on success and the failure reason otherwise.
type ToolResult struct {
	CallID  string
	Name    string
	Content string
	IsError bool
}

// TokenUsage reports provider-side token accounting for a completed turn.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Message is one entry in a session's conversation history.
//
// Assistant messages that requested a tool carry the ToolCall; tool
// messages carry the ToolResult. Seq is assigned by the owning session
// and increases monotonically within it.
type Message struct {
	Role       MessageRole
	Content    string
	ToolCall   *ToolCall
	ToolResult *ToolResult
	Seq        int
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) *Message {
	return &Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) *Message {
	return &Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates a plain assistant message.
func NewAssistantMessage(content string) *Message {
	return &Message{Role: RoleAssistant, Content: content}
}

// NewToolCallMessage creates an assistant message that requests a tool.
// Content holds any text the model produced before the call.
func NewToolCallMessage(content string, call *ToolCall) *Message {
	return &Message{Role: RoleAssistant, Content: content, ToolCall: call}
}

// NewToolResultMessage creates a tool message carrying an execution result.
func NewToolResultMessage(result *ToolResult) *Message {
	return &Message{Role: RoleTool, Content: result.Content, ToolResult: result}
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	clone := *m
	if m.ToolCall != nil {
		call := *m.ToolCall
		if m.ToolCall.Arguments != nil {
			call.Arguments = make(map[string]any, len(m.ToolCall.Arguments))
			for k, v := range m.ToolCall.Arguments {
				call.Arguments[k] = v
			}
		}
		clone.ToolCall = &call
	}
	if m.ToolResult != nil {
		result := *m.ToolResult
		clone.ToolResult = &result
	}
	return &clone
}
