package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/minidosis/minidosis/internal/graph"
	"github.com/minidosis/minidosis/internal/metrics"
)

// Options configures an Engine. Zero values pick the defaults.
type Options struct {
	// Root is the directory inside the filesystem to scan. Empty means the
	// filesystem root.
	Root      string
	Extension string
	// Workers > 1 loads files concurrently. All workers feed one Builder.
	Workers int
	// Timeout bounds a single rebuild. Zero means no limit.
	Timeout time.Duration
	Grammar Grammar
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Engine drives full rebuilds of the graph and publishes each result.
type Engine struct {
	fs     billy.Filesystem
	target *graph.HotSwapGraph
	opts   Options
	log    *zap.Logger

	mu sync.Mutex // one rebuild at a time
}

func NewEngine(fs billy.Filesystem, target *graph.HotSwapGraph, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Extension == "" {
		opts.Extension = DefaultExtension
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Engine{
		fs:     fs,
		target: target,
		opts:   opts,
		log:    opts.Logger.Named("ingest"),
	}
}

// Graph returns the published graph the engine swaps snapshots into.
func (e *Engine) Graph() *graph.HotSwapGraph {
	return e.target
}

// Rebuild scans the whole tree into a fresh snapshot and publishes it.
// Per-file problems are logged and never fail the rebuild. If the walk
// itself fails or ctx ends first, nothing is published and the previous
// snapshot stays current.
func (e *Engine) Rebuild(ctx context.Context) (*graph.Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	root := filepath.Join(e.fs.Root(), e.opts.Root)
	builder := graph.NewBuilder()
	images := graph.NewImageStore(e.fs)
	loader := NewLoader(e.fs, e.opts.Grammar, images, builder, e.log, e.opts.Metrics)
	walker := NewWalker(e.fs, e.opts.Extension, e.log, e.opts.Metrics)

	var loaded, failed atomic.Int64
	load := func(dir, name string) error {
		if err := loader.Load(dir, name); err != nil {
			failed.Add(1)
			return err
		}
		loaded.Add(1)
		return nil
	}

	var err error
	if e.opts.Workers == 1 {
		err = walker.Walk(ctx, e.opts.Root, load)
	} else {
		var g errgroup.Group
		g.SetLimit(e.opts.Workers)
		err = walker.Walk(ctx, e.opts.Root, func(dir, name string) error {
			g.Go(func() error {
				if err := load(dir, name); err != nil {
					walker.Report(dir, name, err)
				}
				return nil
			})
			return nil
		})
		_ = g.Wait() // workers never return errors
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		e.opts.Metrics.ObserveRebuild(metrics.ResultFailed, time.Since(start), 0, 0, 0)
		e.log.Error("rebuild failed, keeping previous snapshot",
			zap.String("root", root),
			zap.Error(err))
		return nil, fmt.Errorf("rebuild %s: %w", root, err)
	}

	snap, err := builder.Snapshot(images, root)
	if err != nil {
		return nil, err
	}
	e.target.Swap(snap)

	elapsed := time.Since(start)
	e.opts.Metrics.ObserveRebuild(metrics.ResultOK, elapsed, snap.NumNodes(), snap.NumPlaceholders(), snap.NumImages())
	e.log.Info("graph rebuilt",
		zap.String("snapshot", snap.ID),
		zap.String("root", root),
		zap.Int("nodes", snap.NumNodes()),
		zap.Int("placeholders", snap.NumPlaceholders()),
		zap.Int("images", snap.NumImages()),
		zap.Int64("files", loaded.Load()),
		zap.Int64("failed", failed.Load()),
		zap.Duration("elapsed", elapsed))
	return snap, nil
}
