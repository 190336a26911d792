// Package coding provides the built-in project tools: reading and
// writing files, listing directories, analyzing project dependencies
// and finding symbol references. Every path goes through the shared
// workspace guard, so the tools are inert until a project is opened
// and can never touch files outside it.
package coding

import (
	"github.com/sidecardev/sidecar/pkg/security/workspace"
	"github.com/sidecardev/sidecar/pkg/tools"
)

// DefaultTools returns the built-in tool set bound to the guard, in
// the order they are presented to the model.
func DefaultTools(guard *workspace.Guard) []tools.Tool {
	return []tools.Tool{
		NewReadFileTool(guard),
		NewWriteFileTool(guard),
		NewListDirectoryTool(guard),
		NewAnalyzeDependenciesTool(guard),
		NewFindReferencesTool(guard),
	}
}
