package session_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidecardev/sidecar/pkg/config"
	"github.com/sidecardev/sidecar/pkg/types"
)

func TestManagerCreateAndGet(t *testing.T) {
	m := newTestManager(t)

	s := m.Create(config.New(config.ProviderOpenAI))
	assert.NotEmpty(t, s.ID())

	got, err := m.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)
}

func TestManagerGetUnknown(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Get("no-such-id")
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.ErrSessionNotFound))
}

func TestManagerListIsSorted(t *testing.T) {
	m := newTestManager(t)
	a := m.Create(config.New(config.ProviderOpenAI))
	b := m.Create(config.New(config.ProviderAnthropic))

	list := m.List()
	require.Len(t, list, 2)
	assert.Less(t, list[0].ID(), list[1].ID())
	ids := []string{list[0].ID(), list[1].ID()}
	assert.ElementsMatch(t, ids, []string{a.ID(), b.ID()})
}

func TestManagerRename(t *testing.T) {
	m := newTestManager(t)
	s := m.Create(config.New(config.ProviderOpenAI))

	require.NoError(t, m.Rename(s.ID(), "refactor task"))
	assert.Equal(t, "refactor task", s.Name())

	err := m.Rename("no-such-id", "x")
	assert.True(t, types.IsKind(err, types.ErrSessionNotFound))
}

func TestManagerCloneCopiesConfigOnly(t *testing.T) {
	m := newTestManager(t)
	cfg := config.New(config.ProviderDeepSeek)
	cfg.Temperature = 1.3
	src := m.Create(cfg)
	require.NoError(t, m.Rename(src.ID(), "original"))
	src.AddFileContext("a.go", "package a")

	clone, err := m.Clone(src.ID())
	require.NoError(t, err)

	assert.NotEqual(t, src.ID(), clone.ID())
	assert.Equal(t, config.ProviderDeepSeek, clone.Config().Provider)
	assert.Equal(t, 1.3, clone.Config().Temperature)
	assert.Empty(t, clone.Name())
	assert.Empty(t, clone.History())
}

func TestManagerClear(t *testing.T) {
	m := newTestManager(t)
	s := m.Create(config.New(config.ProviderOpenAI))
	s.AddFileContext("a.go", "package a")

	require.NoError(t, m.Clear(s.ID()))
	assert.Empty(t, s.History())

	err := m.Clear("no-such-id")
	assert.True(t, types.IsKind(err, types.ErrSessionNotFound))
}

func TestManagerDestroy(t *testing.T) {
	m := newTestManager(t)
	s := m.Create(config.New(config.ProviderOpenAI))

	require.NoError(t, m.Destroy(s.ID()))

	_, err := m.Get(s.ID())
	assert.True(t, types.IsKind(err, types.ErrSessionNotFound))

	select {
	case _, ok := <-s.Events():
		assert.False(t, ok, "event channel should be closed")
	case <-time.After(time.Second):
		t.Fatal("event channel was not closed")
	}

	assert.True(t, types.IsKind(m.Destroy(s.ID()), types.ErrSessionNotFound))
}

func TestManagerDestroyDuringTurn(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w, deltaPayload("working"))
		<-r.Context().Done()
	}))
	defer server.Close()

	m := newTestManager(t)
	s := m.Create(testConfig(server.URL))

	require.NoError(t, s.SendUserMessage("hello"))
	waitEvent(t, s) // the turn is demonstrably streaming

	require.NoError(t, m.Destroy(s.ID()))

	// buffered events may still drain, then the channel closes
	deadline := time.After(eventTimeout)
	for {
		select {
		case _, ok := <-s.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("event channel was not closed after destroy")
		}
	}
}

func TestManagerProjectLifecycle(t *testing.T) {
	m := newTestManager(t)
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n"), 0600))

	require.NoError(t, m.ProjectOpened(root))
	resolved, open := m.Guard().Root()
	require.True(t, open)

	inside, err := m.Guard().Resolve("main.go")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(resolved, "main.go"), inside)

	m.ProjectClosed()
	_, open = m.Guard().Root()
	assert.False(t, open)
}

func TestManagerProjectOpenMissingDir(t *testing.T) {
	m := newTestManager(t)

	err := m.ProjectOpened(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
}
