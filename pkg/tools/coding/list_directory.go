package coding

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sidecardev/sidecar/pkg/security/workspace"
	"github.com/sidecardev/sidecar/pkg/tools"
)

// ListDirectoryTool lists the entries of a directory inside the
// project.
type ListDirectoryTool struct {
	guard *workspace.Guard
}

// NewListDirectoryTool creates a ListDirectoryTool bound to the guard.
func NewListDirectoryTool(guard *workspace.Guard) *ListDirectoryTool {
	return &ListDirectoryTool{guard: guard}
}

func (t *ListDirectoryTool) Name() string {
	return "list_directory"
}

func (t *ListDirectoryTool) Description() string {
	return "List the entries of a directory in the project. Directories are marked with a trailing slash."
}

func (t *ListDirectoryTool) Params() []tools.Param {
	return []tools.Param{
		{Name: "path", Type: "string", Description: "Directory path relative to the project root; defaults to the root"},
	}
}

func (t *ListDirectoryTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	path := tools.StringArg(args, "path")
	if path == "" {
		path = "."
	}

	absPath, err := t.guard.Resolve(path)
	if err != nil {
		return "", fmt.Errorf("DirectoryNotFound: %v", err)
	}

	entries, err := os.ReadDir(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("DirectoryNotFound: %s", path)
		}
		return "", fmt.Errorf("DirectoryNotFound: %v", err)
	}

	relPath := t.guard.Relative(absPath)
	var sb strings.Builder
	fmt.Fprintf(&sb, "Directory: %s (%d entries)\n", relPath, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			fmt.Fprintf(&sb, "  %s/\n", entry.Name())
			continue
		}
		size := int64(0)
		if info, infoErr := entry.Info(); infoErr == nil {
			size = info.Size()
		}
		fmt.Fprintf(&sb, "  %s (%d bytes)\n", entry.Name(), size)
	}
	return sb.String(), nil
}
