package tools

import (
	"context"
	"fmt"
	"sync"
)

// Result is the outcome of one tool invocation. Exactly one of
// Content (success payload) and Failure (reason) is set.
type Result struct {
	Name    string
	Content string
	Failure string
}

// Failed reports whether the invocation produced a failure.
func (r Result) Failed() bool {
	return r.Failure != ""
}

// Payload returns whichever of Content or Failure is set, for feeding
// the result back into the conversation.
func (r Result) Payload() string {
	if r.Failed() {
		return r.Failure
	}
	return r.Content
}

// Registry holds the tools a session can call, keyed by unique name.
// Listing order is registration order, which keeps tool descriptors on
// the wire deterministic.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool. Names must be unique and non-empty.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return fmt.Errorf("tool cannot be nil")
	}
	name := t.Name()
	if name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q is already registered", name)
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns the tools in registration order.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		list = append(list, r.tools[name])
	}
	return list
}

// Execute validates and runs a tool call. Unknown tools, missing
// required parameters and execution errors all come back as failed
// Results; Execute itself never fails.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) Result {
	tool, ok := r.Get(name)
	if !ok {
		return Result{Name: name, Failure: fmt.Sprintf("UnknownTool: no tool named %q is registered", name)}
	}

	if args == nil {
		args = map[string]any{}
	}
	for _, p := range tool.Params() {
		if !p.Required {
			continue
		}
		if _, present := args[p.Name]; !present {
			return Result{Name: name, Failure: fmt.Sprintf("MissingParameter: %s", p.Name)}
		}
	}

	output, err := tool.Execute(ctx, args)
	if err != nil {
		return Result{Name: name, Failure: err.Error()}
	}
	return Result{Name: name, Content: output}
}
