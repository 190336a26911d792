// Package tools defines the tool abstraction the engine exposes to
// models: named capabilities with a declared, ordered parameter list,
// collected in a Registry that validates calls before running them.
package tools

import (
	"context"
)

// Param describes one tool argument.
type Param struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

// Tool is a capability the model can invoke. Execute receives the
// decoded arguments and returns the result payload; an error return
// becomes a failed tool result fed back to the model, never a turn
// failure.
type Tool interface {
	Name() string
	Description() string
	Params() []Param
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// Schema builds the JSON schema object describing a tool's arguments,
// in the shape every supported provider accepts.
func Schema(t Tool) map[string]any {
	properties := make(map[string]any)
	required := make([]string, 0)
	for _, p := range t.Params() {
		properties[p.Name] = map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// StringArg extracts a string argument, returning "" when absent or
// of another type.
func StringArg(args map[string]any, name string) string {
	value, _ := args[name].(string)
	return value
}
