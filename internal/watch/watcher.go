// Package watch triggers graph rebuilds when the content tree changes.
//
// Events are debounced, then turned into rebuild requests. At most one
// rebuild runs at a time and at most one more is queued behind it, so a
// burst of edits during a long rebuild costs exactly one follow-up.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/minidosis/minidosis/internal/metrics"
)

// DefaultDebounce is the quiet period required after the last event before
// a rebuild is requested.
const DefaultDebounce = 250 * time.Millisecond

// RebuildFunc rebuilds and publishes the graph.
type RebuildFunc func(ctx context.Context) error

type Options struct {
	Debounce time.Duration
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

// Watcher watches every non-hidden directory under root.
type Watcher struct {
	root     string
	rebuild  RebuildFunc
	debounce time.Duration
	log      *zap.Logger
	metrics  *metrics.Metrics

	fsw     *fsnotify.Watcher
	trigger chan struct{}
	done    chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup

	mu      sync.Mutex
	watched map[string]struct{}
}

func New(root string, rebuild RebuildFunc, opts Options) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		root:     root,
		rebuild:  rebuild,
		debounce: opts.Debounce,
		log:      opts.Logger.Named("watch"),
		metrics:  opts.Metrics,
		fsw:      fsw,
		trigger:  make(chan struct{}, 1),
		done:     make(chan struct{}),
		watched:  make(map[string]struct{}),
	}, nil
}

// Start registers the directory tree and begins processing events. It
// returns once watching is set up; the loops run until ctx ends or Close.
func (w *Watcher) Start(ctx context.Context) error {
	err := errors.New("watcher already started")
	w.startOnce.Do(func() {
		if err = w.syncDirs(); err != nil {
			return
		}
		w.wg.Add(2)
		go w.eventLoop(ctx)
		go w.rebuildLoop(ctx)
		w.log.Info("watching content tree", zap.String("root", w.root), zap.Int("dirs", w.numWatched()))
	})
	return err
}

// Close stops both loops and releases the fsnotify handle. A rebuild in
// progress is allowed to finish.
func (w *Watcher) Close() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fsw.Close()
		w.wg.Wait()
	})
	return err
}

// Request asks for a rebuild without waiting for it. If one is already
// queued the request is absorbed by it.
func (w *Watcher) Request() {
	select {
	case w.trigger <- struct{}{}:
	default:
		w.metrics.Coalesced()
	}
}

func (w *Watcher) eventLoop(ctx context.Context) {
	defer w.wg.Done()

	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.ignored(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}
			w.metrics.WatchEvent(opName(event.Op))
			w.log.Debug("change detected", zap.String("path", event.Name), zap.String("op", opName(event.Op)))

			// A removed directory takes its inotify watch with it.
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				w.forget(event.Name)
			}
			// New directories must be watched before files land in them.
			if event.Has(fsnotify.Create) {
				if info, err := os.Lstat(event.Name); err == nil && info.IsDir() {
					w.addTree(event.Name)
				}
			}

			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			w.Request()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) rebuildLoop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case <-w.trigger:
			if err := w.rebuild(ctx); err != nil {
				w.log.Error("rebuild after change failed", zap.Error(err))
			}
			if err := w.syncDirs(); err != nil {
				w.log.Warn("resync watched directories", zap.Error(err))
			}
		}
	}
}

// syncDirs makes the watch set match the directories currently on disk.
func (w *Watcher) syncDirs() error {
	current := make(map[string]struct{})
	err := filepath.WalkDir(w.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == w.root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.root && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		current[p] = struct{}{}
		return nil
	})
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for p := range w.watched {
		if _, ok := current[p]; !ok {
			_ = w.fsw.Remove(p)
			delete(w.watched, p)
		}
	}
	for p := range current {
		if _, ok := w.watched[p]; ok {
			continue
		}
		if err := w.fsw.Add(p); err != nil {
			w.log.Warn("cannot watch directory", zap.String("dir", p), zap.Error(err))
			continue
		}
		w.watched[p] = struct{}{}
	}
	return nil
}

// addTree watches dir and everything below it.
func (w *Watcher) addTree(dir string) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if isHidden(d.Name()) {
			return filepath.SkipDir
		}
		w.mu.Lock()
		defer w.mu.Unlock()
		if err := w.fsw.Add(p); err != nil {
			w.log.Warn("cannot watch directory", zap.String("dir", p), zap.Error(err))
			return nil
		}
		w.watched[p] = struct{}{}
		return nil
	})
}

// forget drops p and everything below it from the watch set.
func (w *Watcher) forget(p string) {
	prefix := p + string(filepath.Separator)
	w.mu.Lock()
	defer w.mu.Unlock()
	for dir := range w.watched {
		if dir == p || strings.HasPrefix(dir, prefix) {
			_ = w.fsw.Remove(dir)
			delete(w.watched, dir)
		}
	}
}

func (w *Watcher) isWatched(dir string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.watched[dir]
	return ok
}

func (w *Watcher) numWatched() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.watched)
}

// ignored reports whether p lies in a hidden file or directory below root.
func (w *Watcher) ignored(p string) bool {
	rel, err := filepath.Rel(w.root, p)
	if err != nil || rel == "." {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if isHidden(part) {
			return true
		}
	}
	return false
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func opName(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Write):
		return "write"
	case op.Has(fsnotify.Remove):
		return "remove"
	case op.Has(fsnotify.Rename):
		return "rename"
	default:
		return "other"
	}
}
