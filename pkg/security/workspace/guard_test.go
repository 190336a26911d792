package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openGuard(t *testing.T) (*Guard, string) {
	t.Helper()
	root := t.TempDir()
	guard := NewGuard()
	require.NoError(t, guard.Open(root))
	resolved, ok := guard.Root()
	require.True(t, ok)
	return guard, resolved
}

func TestResolveRelativePath(t *testing.T) {
	guard, root := openGuard(t)

	got, err := guard.Resolve("src/main.go")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "src", "main.go"), got)
}

func TestResolveRejectsTraversal(t *testing.T) {
	guard, _ := openGuard(t)

	tests := []string{
		"../outside.txt",
		"../../etc/passwd",
		"src/../../outside.txt",
		"/etc/passwd",
	}

	for _, path := range tests {
		t.Run(path, func(t *testing.T) {
			_, err := guard.Resolve(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "outside the project root")
		})
	}
}

func TestResolveDotDotWithinProject(t *testing.T) {
	guard, root := openGuard(t)

	got, err := guard.Resolve("src/../main.go")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "main.go"), got)
}

func TestResolveRejectsSymlinkEscape(t *testing.T) {
	guard, root := openGuard(t)

	outside := t.TempDir()
	link := filepath.Join(root, "link")
	require.NoError(t, os.Symlink(outside, link))

	_, err := guard.Resolve("link/secret.txt")
	assert.Error(t, err)
}

func TestClosedGuardRejectsEverything(t *testing.T) {
	guard := NewGuard()

	_, err := guard.Resolve("main.go")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no project is open")

	_, ok := guard.Root()
	assert.False(t, ok)
}

func TestCloseDisarms(t *testing.T) {
	guard, _ := openGuard(t)

	_, err := guard.Resolve("main.go")
	require.NoError(t, err)

	guard.Close()
	_, err = guard.Resolve("main.go")
	assert.Error(t, err)
}

func TestOpenMissingDirectory(t *testing.T) {
	guard := NewGuard()
	err := guard.Open(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

func TestRelative(t *testing.T) {
	guard, root := openGuard(t)
	assert.Equal(t, filepath.Join("src", "main.go"), guard.Relative(filepath.Join(root, "src", "main.go")))
}
