package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"go.uber.org/zap"

	"github.com/minidosis/minidosis/internal/metrics"
)

// DefaultExtension marks content files.
const DefaultExtension = ".minidosis"

// FileFunc handles one content file found by the Walker.
type FileFunc func(dir, name string) error

// Walker visits the content files of a directory tree depth-first:
// subdirectories before the files next to them. Directories whose name
// starts with "." are skipped.
type Walker struct {
	fs      billy.Filesystem
	ext     string
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewWalker(fs billy.Filesystem, ext string, log *zap.Logger, m *metrics.Metrics) *Walker {
	if ext == "" {
		ext = DefaultExtension
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Walker{fs: fs, ext: ext, log: log, metrics: m}
}

// Walk calls onFile for every content file below root. An error returned by
// onFile is reported and the walk goes on; only a root that cannot be
// listed or a cancelled context stops it.
func (w *Walker) Walk(ctx context.Context, root string, onFile FileFunc) error {
	if root != "" {
		fi, err := w.fs.Stat(root)
		if err != nil {
			return fmt.Errorf("list root %q: %w", w.abs(root), err)
		}
		if !fi.IsDir() {
			return fmt.Errorf("list root %q: not a directory", w.abs(root))
		}
	}
	entries, err := w.fs.ReadDir(root)
	if err != nil {
		return fmt.Errorf("list root %q: %w", w.abs(root), err)
	}
	return w.walkDir(ctx, root, entries, onFile)
}

func (w *Walker) walkDir(ctx context.Context, dir string, entries []os.FileInfo, onFile FileFunc) error {
	for _, e := range entries {
		if !e.IsDir() || isHidden(e.Name()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		sub := w.fs.Join(dir, e.Name())
		children, err := w.fs.ReadDir(sub)
		if err != nil {
			w.log.Warn("skipping unreadable directory", zap.String("dir", w.abs(sub)), zap.Error(err))
			continue
		}
		if err := w.walkDir(ctx, sub, children, onFile); err != nil {
			return err
		}
	}

	for _, e := range entries {
		if !e.Mode().IsRegular() || !strings.HasSuffix(e.Name(), w.ext) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := onFile(dir, e.Name()); err != nil {
			w.Report(dir, e.Name(), err)
		}
	}
	return nil
}

// Report logs and counts a per-file failure.
func (w *Walker) Report(dir, name string, err error) {
	kind := Kind(err)
	w.log.Error("skipping content file",
		zap.String("file", w.abs(w.fs.Join(dir, name))),
		zap.String("kind", kind),
		zap.Error(err))
	w.metrics.FileError(kind)
}

func (w *Walker) abs(p string) string {
	return filepath.Join(w.fs.Root(), p)
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
