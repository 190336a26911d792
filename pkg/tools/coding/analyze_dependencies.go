package coding

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sidecardev/sidecar/pkg/security/workspace"
	"github.com/sidecardev/sidecar/pkg/tools"
)

// AnalyzeDependenciesTool inspects the project's manifest files and
// summarizes the declared dependencies per ecosystem.
type AnalyzeDependenciesTool struct {
	guard *workspace.Guard
}

// NewAnalyzeDependenciesTool creates the tool bound to the guard.
func NewAnalyzeDependenciesTool(guard *workspace.Guard) *AnalyzeDependenciesTool {
	return &AnalyzeDependenciesTool{guard: guard}
}

func (t *AnalyzeDependenciesTool) Name() string {
	return "analyze_dependencies"
}

func (t *AnalyzeDependenciesTool) Description() string {
	return "Analyze the project's dependency manifests (go.mod, package.json, requirements.txt, Cargo.toml) and summarize the declared dependencies."
}

func (t *AnalyzeDependenciesTool) Params() []tools.Param {
	return []tools.Param{
		{Name: "path", Type: "string", Description: "Directory to analyze, relative to the project root; defaults to the root"},
	}
}

func (t *AnalyzeDependenciesTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	path := tools.StringArg(args, "path")
	if path == "" {
		path = "."
	}

	absPath, err := t.guard.Resolve(path)
	if err != nil {
		return "", fmt.Errorf("AnalysisFailed: %v", err)
	}

	type manifest struct {
		file    string
		analyze func(string) ([]string, error)
	}
	manifests := []manifest{
		{"go.mod", analyzeGoMod},
		{"package.json", analyzePackageJSON},
		{"requirements.txt", analyzeRequirements},
		{"Cargo.toml", analyzeCargoToml},
	}

	var sb strings.Builder
	found := 0
	for _, m := range manifests {
		manifestPath := filepath.Join(absPath, m.file)
		if _, statErr := os.Stat(manifestPath); statErr != nil {
			continue
		}
		deps, analyzeErr := m.analyze(manifestPath)
		if analyzeErr != nil {
			return "", fmt.Errorf("AnalysisFailed: %s: %v", m.file, analyzeErr)
		}
		found++
		fmt.Fprintf(&sb, "%s: %d dependencies\n", m.file, len(deps))
		for _, dep := range deps {
			fmt.Fprintf(&sb, "  %s\n", dep)
		}
	}

	if found == 0 {
		return "No dependency manifests found.", nil
	}
	return sb.String(), nil
}

func analyzeGoMod(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var deps []string
	inBlock := false
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "require (":
			inBlock = true
		case inBlock && line == ")":
			inBlock = false
		case inBlock && line != "":
			deps = append(deps, strings.TrimSuffix(line, " // indirect"))
		case strings.HasPrefix(line, "require "):
			deps = append(deps, strings.TrimPrefix(line, "require "))
		}
	}
	return deps, scanner.Err()
}

func analyzePackageJSON(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var pkg struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, err
	}

	var deps []string
	for name, version := range pkg.Dependencies {
		deps = append(deps, fmt.Sprintf("%s %s", name, version))
	}
	for name, version := range pkg.DevDependencies {
		deps = append(deps, fmt.Sprintf("%s %s (dev)", name, version))
	}
	sort.Strings(deps)
	return deps, nil
}

func analyzeRequirements(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var deps []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		deps = append(deps, line)
	}
	return deps, scanner.Err()
}

func analyzeCargoToml(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var deps []string
	inDeps := false
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "[") {
			inDeps = strings.HasPrefix(line, "[dependencies") || strings.HasPrefix(line, "[dev-dependencies")
			continue
		}
		if !inDeps || line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if name, _, ok := strings.Cut(line, "="); ok {
			deps = append(deps, strings.TrimSpace(name))
		}
	}
	return deps, scanner.Err()
}
