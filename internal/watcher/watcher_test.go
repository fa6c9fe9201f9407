package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/submittal-review/internal/core/domain"
)

const testDebounce = 50 * time.Millisecond

type mockRefresher struct {
	calls atomic.Int32
	err   error
	done  chan struct{}
}

func newMockRefresher() *mockRefresher {
	return &mockRefresher{done: make(chan struct{}, 16)}
}

func (m *mockRefresher) Refresh(_ context.Context) (domain.KnowledgeStatus, error) {
	m.calls.Add(1)
	m.done <- struct{}{}
	return domain.KnowledgeStatus{Ready: true, ChunkCount: 1}, m.err
}

func (m *mockRefresher) wait(t *testing.T) {
	t.Helper()
	select {
	case <-m.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for refresh")
	}
}

func startWatcher(t *testing.T, root string, target Refresher) {
	t.Helper()
	w, err := New(root, target, testDebounce)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-errCh)
		assert.NoError(t, w.Close())
	})
}

func TestWatcher_RefreshesAfterChange(t *testing.T) {
	root := t.TempDir()
	target := newMockRefresher()
	startWatcher(t, root, target)

	require.NoError(t, os.WriteFile(filepath.Join(root, "concrete.txt"), []byte("grade C40"), 0o600))
	target.wait(t)
	assert.Equal(t, int32(1), target.calls.Load())
}

func TestWatcher_DebouncesBurst(t *testing.T) {
	root := t.TempDir()
	target := newMockRefresher()
	startWatcher(t, root, target)

	path := filepath.Join(root, "steel.txt")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte{byte('a' + i)}, 0o600))
		time.Sleep(5 * time.Millisecond)
	}
	target.wait(t)

	time.Sleep(4 * testDebounce)
	assert.Equal(t, int32(1), target.calls.Load())
}

func TestWatcher_NewSubdirectoryIsWatched(t *testing.T) {
	root := t.TempDir()
	target := newMockRefresher()
	startWatcher(t, root, target)

	sub := filepath.Join(root, "division-03")
	require.NoError(t, os.Mkdir(sub, 0o755))
	target.wait(t)

	require.NoError(t, os.WriteFile(filepath.Join(sub, "cast-in-place.txt"), []byte("slab"), 0o600))
	target.wait(t)
	assert.Equal(t, int32(2), target.calls.Load())
}

func TestWatcher_IgnoresHiddenFiles(t *testing.T) {
	root := t.TempDir()
	target := newMockRefresher()
	startWatcher(t, root, target)

	require.NoError(t, os.WriteFile(filepath.Join(root, ".DS_Store"), []byte("x"), 0o600))
	time.Sleep(4 * testDebounce)
	assert.Equal(t, int32(0), target.calls.Load())
}

func TestWatcher_RefreshErrorKeepsWatching(t *testing.T) {
	root := t.TempDir()
	target := newMockRefresher()
	target.err = errors.New("embedding service down")
	startWatcher(t, root, target)

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0o600))
	target.wait(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("b"), 0o600))
	target.wait(t)
	assert.Equal(t, int32(2), target.calls.Load())
}

func TestNew_Errors(t *testing.T) {
	t.Run("missing root", func(t *testing.T) {
		w, err := New("/non/existent/path", newMockRefresher(), 0)
		assert.Nil(t, w)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "root path error")
	})

	t.Run("root is a file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "a.txt")
		require.NoError(t, os.WriteFile(file, []byte("a"), 0o600))

		w, err := New(file, newMockRefresher(), 0)
		assert.Nil(t, w)
		assert.Error(t, err)
	})

	t.Run("default debounce", func(t *testing.T) {
		w, err := New(t.TempDir(), newMockRefresher(), 0)
		require.NoError(t, err)
		defer w.Close()
		assert.Equal(t, DefaultDebounce, w.debounce)
	})
}

func TestWatcher_Close(t *testing.T) {
	w, err := New(t.TempDir(), newMockRefresher(), testDebounce)
	require.NoError(t, err)

	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close())
	assert.ErrorIs(t, w.Run(context.Background()), ErrClosed)
}

func TestWatcher_Relevant(t *testing.T) {
	root := "/corpus"
	w := &Watcher{root: root}

	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{"create", fsnotify.Event{Name: "/corpus/a.txt", Op: fsnotify.Create}, true},
		{"write", fsnotify.Event{Name: "/corpus/a.txt", Op: fsnotify.Write}, true},
		{"remove", fsnotify.Event{Name: "/corpus/a.txt", Op: fsnotify.Remove}, true},
		{"rename", fsnotify.Event{Name: "/corpus/a.txt", Op: fsnotify.Rename}, true},
		{"write and chmod", fsnotify.Event{Name: "/corpus/a.txt", Op: fsnotify.Write | fsnotify.Chmod}, true},
		{"chmod only", fsnotify.Event{Name: "/corpus/a.txt", Op: fsnotify.Chmod}, false},
		{"hidden file", fsnotify.Event{Name: "/corpus/.swp", Op: fsnotify.Write}, false},
		{"hidden directory", fsnotify.Event{Name: "/corpus/.git/index", Op: fsnotify.Write}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.relevant(tt.event))
		})
	}
}
