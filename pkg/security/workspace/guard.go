// Package workspace enforces the project-root boundary on file system
// operations. Every path a tool touches is resolved and checked here,
// so path traversal out of the opened project is rejected regardless
// of how the path was spelled.
package workspace

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// Guard holds the currently opened project root. It starts closed;
// Open arms it and Close disarms it again. All methods are safe for
// concurrent use.
type Guard struct {
	mu   sync.RWMutex
	root string
}

// NewGuard creates a closed guard.
func NewGuard() *Guard {
	return &Guard{}
}

// Open sets the project root. The directory must exist; the stored
// root is absolute with symlinks evaluated so containment checks
// compare like with like.
func (g *Guard) Open(root string) error {
	if root == "" {
		return fmt.Errorf("project root cannot be empty")
	}

	absPath, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve project root: %w", err)
	}
	evalPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return fmt.Errorf("failed to open project root: %w", err)
	}

	g.mu.Lock()
	g.root = evalPath
	g.mu.Unlock()
	return nil
}

// Close disarms the guard. Subsequent Resolve calls fail until the
// next Open.
func (g *Guard) Close() {
	g.mu.Lock()
	g.root = ""
	g.mu.Unlock()
}

// Root returns the current project root and whether one is open.
func (g *Guard) Root() (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.root, g.root != ""
}

// Resolve converts a tool-supplied path into an absolute path inside
// the project, rejecting anything that escapes the boundary. Relative
// paths are taken relative to the project root. The target itself need
// not exist yet; symlinks along the existing part of the path are
// followed before the containment check.
func (g *Guard) Resolve(path string) (string, error) {
	g.mu.RLock()
	root := g.root
	g.mu.RUnlock()

	if root == "" {
		return "", fmt.Errorf("no project is open")
	}
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	cleanPath := filepath.Clean(path)
	var absPath string
	if filepath.IsAbs(cleanPath) {
		absPath = cleanPath
	} else {
		absPath = filepath.Join(root, cleanPath)
	}

	evalPath := resolveSymlinks(absPath)
	if !within(root, evalPath) {
		return "", fmt.Errorf("path %q is outside the project root", path)
	}
	return evalPath, nil
}

// Relative renders an absolute path relative to the project root for
// messages; it falls back to the input when that is not possible.
func (g *Guard) Relative(absPath string) string {
	g.mu.RLock()
	root := g.root
	g.mu.RUnlock()

	if root == "" {
		return absPath
	}
	if rel, err := filepath.Rel(root, absPath); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return absPath
}

func within(root, path string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path+string(filepath.Separator), root+string(filepath.Separator))
}

// resolveSymlinks evaluates symlinks for a path that may not exist
// yet, walking up to the nearest existing ancestor and reattaching the
// remaining components.
func resolveSymlinks(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}

	var components []string
	currentPath := path
	for {
		if resolved, err := filepath.EvalSymlinks(currentPath); err == nil {
			result := resolved
			for i := len(components) - 1; i >= 0; i-- {
				result = filepath.Join(result, components[i])
			}
			return result
		}

		dir := filepath.Dir(currentPath)
		if dir == currentPath {
			return path
		}
		components = append(components, filepath.Base(currentPath))
		currentPath = dir
	}
}
