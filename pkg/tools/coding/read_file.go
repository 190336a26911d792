package coding

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sidecardev/sidecar/pkg/security/workspace"
	"github.com/sidecardev/sidecar/pkg/tools"
)

// ReadFileTool reads a file inside the project and returns its content
// with line numbers.
type ReadFileTool struct {
	guard *workspace.Guard
}

// NewReadFileTool creates a ReadFileTool bound to the guard.
func NewReadFileTool(guard *workspace.Guard) *ReadFileTool {
	return &ReadFileTool{guard: guard}
}

func (t *ReadFileTool) Name() string {
	return "read_file"
}

func (t *ReadFileTool) Description() string {
	return "Read the contents of a file in the project. Returns the content with line numbers."
}

func (t *ReadFileTool) Params() []tools.Param {
	return []tools.Param{
		{Name: "path", Type: "string", Description: "Path to the file, relative to the project root", Required: true},
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	path := tools.StringArg(args, "path")

	absPath, err := t.guard.Resolve(path)
	if err != nil {
		return "", fmt.Errorf("FileUnreadable: %v", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("FileNotFound: %s", path)
		}
		return "", fmt.Errorf("FileUnreadable: %v", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("FileUnreadable: %s is a directory", path)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return "", fmt.Errorf("FileUnreadable: %v", err)
	}

	relPath := t.guard.Relative(absPath)
	lines := strings.Split(string(data), "\n")

	var sb strings.Builder
	fmt.Fprintf(&sb, "File: %s (%d lines)\n", relPath, len(lines))
	for i, line := range lines {
		fmt.Fprintf(&sb, "%4d | %s\n", i+1, line)
	}
	return sb.String(), nil
}
