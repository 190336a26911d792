package coding

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sidecardev/sidecar/pkg/security/workspace"
	"github.com/sidecardev/sidecar/pkg/tools"
)

// WriteFileTool creates or overwrites a file inside the project.
// Parent directories are created as needed and the write is atomic.
type WriteFileTool struct {
	guard *workspace.Guard
}

// NewWriteFileTool creates a WriteFileTool bound to the guard.
func NewWriteFileTool(guard *workspace.Guard) *WriteFileTool {
	return &WriteFileTool{guard: guard}
}

func (t *WriteFileTool) Name() string {
	return "write_file"
}

func (t *WriteFileTool) Description() string {
	return "Write content to a file in the project, creating it if needed or overwriting it if it exists. Parent directories are created automatically."
}

func (t *WriteFileTool) Params() []tools.Param {
	return []tools.Param{
		{Name: "path", Type: "string", Description: "Path to the file, relative to the project root", Required: true},
		{Name: "content", Type: "string", Description: "Content to write", Required: true},
	}
}

func (t *WriteFileTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	path := tools.StringArg(args, "path")
	content := tools.StringArg(args, "content")

	absPath, err := t.guard.Resolve(path)
	if err != nil {
		return "", fmt.Errorf("WriteDenied: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return "", fmt.Errorf("WriteDenied: failed to create parent directories: %v", err)
	}

	existed := false
	if _, statErr := os.Stat(absPath); statErr == nil {
		existed = true
	}

	tmpPath := absPath + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(content), 0600); err != nil {
		return "", fmt.Errorf("WriteDenied: %v", err)
	}
	if err := os.Rename(tmpPath, absPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("WriteDenied: %v", err)
	}

	relPath := t.guard.Relative(absPath)
	lineCount := strings.Count(content, "\n") + 1
	if existed {
		return fmt.Sprintf("File '%s' overwritten (%d lines, %d bytes)", relPath, lineCount, len(content)), nil
	}
	return fmt.Sprintf("File '%s' created (%d lines, %d bytes)", relPath, lineCount, len(content)), nil
}
