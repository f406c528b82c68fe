package ingest

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"go.uber.org/zap"

	"github.com/minidosis/minidosis/api"
	"github.com/minidosis/minidosis/internal/graph"
	"github.com/minidosis/minidosis/internal/markup"
	"github.com/minidosis/minidosis/internal/metrics"
)

var errEmptyID = errors.New("empty node id")

// Loader reads one content file and merges it into a Builder.
type Loader struct {
	fs      billy.Filesystem
	grammar Grammar
	images  *graph.ImageStore
	builder *graph.Builder
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewLoader(fs billy.Filesystem, grammar Grammar, images *graph.ImageStore, builder *graph.Builder, log *zap.Logger, m *metrics.Metrics) *Loader {
	if grammar == nil {
		grammar = markup.Parser{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{
		fs:      fs,
		grammar: grammar,
		images:  images,
		builder: builder,
		log:     log,
		metrics: m,
	}
}

// NodeID derives a node id from a file name: everything before the first ".".
func NodeID(name string) string {
	id, _, _ := strings.Cut(name, ".")
	return id
}

// Load parses dir/name and merges its header and content into the builder.
func (l *Loader) Load(dir, name string) error {
	p := l.fs.Join(dir, name)
	source := filepath.Join(l.fs.Root(), p)

	id := NodeID(name)
	if id == "" {
		return fmt.Errorf("%s: %w", source, errEmptyID)
	}

	raw, err := l.readFile(p)
	if err != nil {
		return &FileReadError{Path: source, Err: err}
	}

	var images []pendingImage
	doc, err := l.grammar.Parse(string(raw), markup.Hooks{
		Image: l.imageHook(dir, source, &images),
	})
	if err != nil {
		return fmt.Errorf("parse %s: %w", source, err)
	}
	if doc.Header == nil {
		return &MissingHeaderError{Path: source}
	}

	if prev, ok := l.builder.SourceOf(id); ok && prev != source {
		l.log.Warn("node defined by more than one file; last one wins",
			zap.String("id", id),
			zap.String("file", source),
			zap.String("previous", prev))
	}

	header := graph.Header{
		Title:    doc.Header.Title,
		Bases:    strings.Fields(doc.Header.Bases),
		Children: strings.Fields(doc.Header.Children),
		Related:  strings.Fields(doc.Header.Related),
	}
	if err := l.builder.Merge(id, source, header, doc.Content); err != nil {
		return fmt.Errorf("merge %s: %w", id, err)
	}
	for _, img := range images {
		l.images.Register(img.hash, img.abs)
	}
	return nil
}

// pendingImage is an image hashed while parsing, registered only once its
// file has been accepted.
type pendingImage struct {
	hash, abs string
}

func (l *Loader) readFile(p string) ([]byte, error) {
	f, err := l.fs.Open(p)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}

// imageHook resolves image references relative to the content file's
// directory and collects them into pending. A failure becomes a diagnostic
// element instead of an error so the rest of the file still loads.
func (l *Loader) imageHook(dir, source string, pending *[]pendingImage) func(string) *api.Element {
	return func(declared string) *api.Element {
		var (
			hash, abs string
			err       error
		)
		if declared == "" {
			err = errors.New("empty image path")
		} else {
			hash, abs, err = l.images.Hash(dir, declared)
		}
		if err != nil {
			l.log.Warn("image unavailable",
				zap.String("file", source),
				zap.String("image", declared),
				zap.Error(err))
			l.metrics.ImageError()
			return &api.Element{
				Cmd:   "img",
				Error: fmt.Sprintf("failed to load image '%s' in node '%s': %v", declared, source, err),
			}
		}
		*pending = append(*pending, pendingImage{hash: hash, abs: abs})
		return &api.Element{Cmd: "img", Arg: hash}
	}
}
