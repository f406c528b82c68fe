package watch

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minidosis/minidosis/internal/metrics"
)

func TestWatcher_CoalescesRequestsDuringRebuild(t *testing.T) {
	started := make(chan struct{}, 10)
	release := make(chan struct{})
	var calls atomic.Int32

	rebuild := func(context.Context) error {
		if calls.Add(1) == 1 {
			started <- struct{}{}
			<-release
		}
		return nil
	}
	m := metrics.New(prometheus.NewRegistry())
	w, err := New(t.TempDir(), rebuild, Options{Metrics: m})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Close() })

	w.Request()
	<-started

	for i := 0; i < 5; i++ {
		w.Request()
	}
	close(release)

	require.Eventually(t, func() bool { return calls.Load() == 2 }, 2*time.Second, 10*time.Millisecond)
	// Give a stray third rebuild the chance to show up.
	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 2, calls.Load())
	assert.Equal(t, 4.0, testutil.ToFloat64(m.CoalescedTotal))
}

func TestWatcher_RebuildsOnChange(t *testing.T) {
	root := t.TempDir()
	var calls atomic.Int32
	w, err := New(root, func(context.Context) error {
		calls.Add(1)
		return nil
	}, Options{Debounce: 20 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Close() })

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.minidosis"), []byte("@graph\n  @title A\n"), 0o644))
	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 5*time.Second, 10*time.Millisecond)

	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.Eventually(t, func() bool { return w.isWatched(sub) }, 5*time.Second, 10*time.Millisecond)
	// Wait for the mkdir-triggered rebuild to settle before measuring.
	time.Sleep(100 * time.Millisecond)

	before := calls.Load()
	require.NoError(t, os.WriteFile(filepath.Join(sub, "b.minidosis"), []byte("@graph\n  @title B\n"), 0o644))
	require.Eventually(t, func() bool { return calls.Load() > before }, 5*time.Second, 10*time.Millisecond)
}

func TestWatcher_SkipsHiddenDirectories(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git", "objects"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "topics", "lists"), 0o755))

	w, err := New(root, func(context.Context) error { return nil }, Options{})
	require.NoError(t, err)
	require.NoError(t, w.syncDirs())
	t.Cleanup(func() { _ = w.Close() })

	assert.True(t, w.isWatched(w.root))
	assert.True(t, w.isWatched(filepath.Join(w.root, "topics", "lists")))
	assert.False(t, w.isWatched(filepath.Join(w.root, ".git")))
	assert.True(t, w.ignored(filepath.Join(w.root, ".git", "HEAD")))
	assert.False(t, w.ignored(filepath.Join(w.root, "topics", "a.minidosis")))
}

func TestWatcher_SyncDropsRemovedDirectories(t *testing.T) {
	root := t.TempDir()
	gone := filepath.Join(root, "gone")
	require.NoError(t, os.Mkdir(gone, 0o755))

	w, err := New(root, func(context.Context) error { return nil }, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	require.NoError(t, w.syncDirs())
	require.True(t, w.isWatched(gone))

	require.NoError(t, os.RemoveAll(gone))
	require.NoError(t, w.syncDirs())
	assert.False(t, w.isWatched(gone))
}

func TestWatcher_StartTwice(t *testing.T) {
	w, err := New(t.TempDir(), func(context.Context) error { return nil }, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()))
}

func TestWatcher_BurstOfWritesRebuildsOnce(t *testing.T) {
	root := t.TempDir()
	var calls atomic.Int32
	w, err := New(root, func(context.Context) error {
		calls.Add(1)
		return nil
	}, Options{Debounce: 100 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Close() })

	for i := 0; i < 20; i++ {
		name := filepath.Join(root, "t"+strconv.Itoa(i)+".minidosis")
		require.NoError(t, os.WriteFile(name, []byte("@graph\n  @title T\n"), 0o644))
	}

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 5*time.Second, 10*time.Millisecond)
	time.Sleep(400 * time.Millisecond)
	assert.EqualValues(t, 1, calls.Load())
}

func TestWatcher_RecreatedDirectoryIsWatchedAgain(t *testing.T) {
	root := t.TempDir()
	lists := filepath.Join(root, "lists")
	require.NoError(t, os.Mkdir(lists, 0o755))

	var calls atomic.Int32
	w, err := New(root, func(context.Context) error {
		calls.Add(1)
		return nil
	}, Options{Debounce: 50 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Close() })
	require.True(t, w.isWatched(lists))

	require.NoError(t, os.RemoveAll(lists))
	require.NoError(t, os.Mkdir(lists, 0o755))
	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 5*time.Second, 10*time.Millisecond)
	// Let the rebuild and its resync finish.
	time.Sleep(300 * time.Millisecond)
	require.True(t, w.isWatched(lists))

	before := calls.Load()
	require.NoError(t, os.WriteFile(filepath.Join(lists, "x.minidosis"), []byte("@graph\n  @title X\n"), 0o644))
	require.Eventually(t, func() bool { return calls.Load() > before }, 5*time.Second, 10*time.Millisecond,
		"an edit inside the recreated directory must trigger a rebuild")
}

func TestWatcher_ForgetDropsSubtree(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "b"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(root, "ab"), 0o755))

	w, err := New(root, func(context.Context) error { return nil }, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	require.NoError(t, w.syncDirs())

	w.forget(filepath.Join(w.root, "a"))
	assert.False(t, w.isWatched(filepath.Join(w.root, "a")))
	assert.False(t, w.isWatched(filepath.Join(w.root, "a", "b")))
	assert.True(t, w.isWatched(filepath.Join(w.root, "ab")))
}

func TestWatcher_SkipsSymlinkedDirectories(t *testing.T) {
	root := t.TempDir()
	target := t.TempDir()

	w, err := New(root, func(context.Context) error { return nil }, Options{Debounce: 20 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Close() })

	link := filepath.Join(root, "linked")
	require.NoError(t, os.Symlink(target, link))
	plain := filepath.Join(root, "plain")
	require.NoError(t, os.Mkdir(plain, 0o755))

	require.Eventually(t, func() bool { return w.isWatched(plain) }, 5*time.Second, 10*time.Millisecond)
	assert.False(t, w.isWatched(link))
}
