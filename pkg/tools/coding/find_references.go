package coding

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"github.com/sidecardev/sidecar/pkg/security/workspace"
	"github.com/sidecardev/sidecar/pkg/tools"
)

const (
	maxReferenceMatches = 200
	maxScannedFileBytes = 1 << 20
)

// ignorePatterns are skipped during the project walk. Directories
// match by name, files by base name.
var ignorePatterns = []string{
	".git",
	"node_modules",
	"vendor",
	"dist",
	"target",
	"__pycache__",
	"*.min.js",
	"*.min.css",
}

// FindReferencesTool searches project files for occurrences of a
// symbol and reports them as path:line matches.
type FindReferencesTool struct {
	guard   *workspace.Guard
	ignored []glob.Glob
}

// NewFindReferencesTool creates the tool bound to the guard.
func NewFindReferencesTool(guard *workspace.Guard) *FindReferencesTool {
	ignored := make([]glob.Glob, 0, len(ignorePatterns))
	for _, pattern := range ignorePatterns {
		ignored = append(ignored, glob.MustCompile(pattern))
	}
	return &FindReferencesTool{guard: guard, ignored: ignored}
}

func (t *FindReferencesTool) Name() string {
	return "find_references"
}

func (t *FindReferencesTool) Description() string {
	return "Find references to a symbol across the project. Returns path:line matches; an empty result is not an error."
}

func (t *FindReferencesTool) Params() []tools.Param {
	return []tools.Param{
		{Name: "symbol", Type: "string", Description: "Symbol or identifier to search for", Required: true},
	}
}

func (t *FindReferencesTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	symbol := tools.StringArg(args, "symbol")
	if symbol == "" {
		return "", fmt.Errorf("MissingParameter: symbol")
	}

	root, ok := t.guard.Root()
	if !ok {
		return "", fmt.Errorf("no project is open")
	}

	var matches []string
	walkErr := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if t.shouldIgnore(entry.Name()) {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			return nil
		}
		if info, infoErr := entry.Info(); infoErr != nil || info.Size() > maxScannedFileBytes {
			return nil
		}

		fileMatches, scanErr := scanFile(path, symbol)
		if scanErr != nil {
			return nil
		}
		relPath, relErr := filepath.Rel(root, path)
		if relErr != nil {
			relPath = path
		}
		for _, lineNo := range fileMatches {
			matches = append(matches, fmt.Sprintf("%s:%d", relPath, lineNo))
			if len(matches) >= maxReferenceMatches {
				return filepath.SkipAll
			}
		}
		return nil
	})
	if walkErr != nil && ctx.Err() != nil {
		return "", fmt.Errorf("search interrupted: %v", walkErr)
	}

	if len(matches) == 0 {
		return fmt.Sprintf("No references to %q found.", symbol), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "References to %q (%d):\n", symbol, len(matches))
	for _, match := range matches {
		fmt.Fprintf(&sb, "  %s\n", match)
	}
	return sb.String(), nil
}

func (t *FindReferencesTool) shouldIgnore(name string) bool {
	for _, pattern := range t.ignored {
		if pattern.Match(name) {
			return true
		}
	}
	return false
}

func scanFile(path, symbol string) ([]int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lineNumbers []int
	lineNo := 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxScannedFileBytes)
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.Contains(line, "\x00") {
			// binary file, stop scanning
			return lineNumbers, nil
		}
		if strings.Contains(line, symbol) {
			lineNumbers = append(lineNumbers, lineNo)
		}
	}
	return lineNumbers, scanner.Err()
}
