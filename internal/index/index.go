// Package index assembles the topic graph from configuration: the published
// graph, the rebuild engine over the content directory and, on request, the
// filesystem watcher that keeps it current.
package index

import (
	"context"
	"errors"
	"sync"

	"github.com/go-git/go-billy/v5/osfs"
	"go.uber.org/zap"

	"github.com/minidosis/minidosis/api"
	"github.com/minidosis/minidosis/internal/config"
	"github.com/minidosis/minidosis/internal/graph"
	"github.com/minidosis/minidosis/internal/ingest"
	"github.com/minidosis/minidosis/internal/metrics"
	"github.com/minidosis/minidosis/internal/watch"
)

var errClosed = errors.New("index closed")

// Index is the query surface of the topic graph. Queries always run against
// the most recently published snapshot.
type Index struct {
	graph.Graph

	published *graph.HotSwapGraph
	cfg       *config.Config
	engine    *ingest.Engine
	log       *zap.Logger
	metrics   *metrics.Metrics

	mu      sync.Mutex
	watcher *watch.Watcher
	closed  bool
}

// New wires an empty index for cfg. Nothing is read until Rebuild.
func New(cfg *config.Config, log *zap.Logger, m *metrics.Metrics) *Index {
	if log == nil {
		log = zap.NewNop()
	}
	g := graph.NewHotSwapGraph(nil)
	engine := ingest.NewEngine(osfs.New(cfg.GraphDir), g, ingest.Options{
		Extension: cfg.Extension,
		Workers:   cfg.Workers,
		Timeout:   cfg.RebuildTimeout,
		Logger:    log,
		Metrics:   m,
	})
	return &Index{
		Graph:     g,
		published: g,
		cfg:       cfg,
		engine:    engine,
		log:       log,
		metrics:   m,
	}
}

// Current pins the published snapshot for queries that must agree.
func (ix *Index) Current() *graph.Snapshot {
	return ix.published.Current()
}

// View returns the JSON view of id from the published snapshot.
func (ix *Index) View(id string) (api.NodeView, error) {
	return ix.published.View(id)
}

// Rebuild rescans the content directory and publishes the result.
func (ix *Index) Rebuild(ctx context.Context) error {
	_, err := ix.engine.Rebuild(ctx)
	return err
}

// Watch starts rebuilding on every change below the content directory. It
// returns once the watches are registered.
func (ix *Index) Watch(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return errClosed
	}
	if ix.watcher != nil {
		return nil
	}

	w, err := watch.New(ix.cfg.GraphDir, ix.Rebuild, watch.Options{
		Debounce: ix.cfg.Debounce,
		Logger:   ix.log,
		Metrics:  ix.metrics,
	})
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		_ = w.Close()
		return err
	}
	ix.watcher = w
	return nil
}

// Close stops watching. The last published snapshot stays queryable.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.closed = true
	if ix.watcher == nil {
		return nil
	}
	err := ix.watcher.Close()
	ix.watcher = nil
	return err
}
