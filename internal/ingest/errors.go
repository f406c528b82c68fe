package ingest

import (
	"errors"
	"fmt"

	"github.com/minidosis/minidosis/internal/graph"
	"github.com/minidosis/minidosis/internal/markup"
)

// Failure kinds used in logs and metrics.
const (
	KindRead          = "read"
	KindMissingHeader = "missing_header"
	KindGrammar       = "grammar"
	KindContract      = "contract"
	KindUnknown       = "unknown"
)

// FileReadError reports a content file that could not be read.
type FileReadError struct {
	Path string
	Err  error
}

func (e *FileReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *FileReadError) Unwrap() error { return e.Err }

// MissingHeaderError reports a content file without a `@graph` header.
type MissingHeaderError struct {
	Path string
}

func (e *MissingHeaderError) Error() string {
	return fmt.Sprintf("%s: missing @graph header", e.Path)
}

// Kind classifies a per-file failure.
func Kind(err error) string {
	var (
		readErr   *FileReadError
		headerErr *MissingHeaderError
		parseErr  *markup.ParseError
	)
	switch {
	case errors.As(err, &readErr):
		return KindRead
	case errors.As(err, &headerErr):
		return KindMissingHeader
	case errors.As(err, &parseErr):
		return KindGrammar
	case errors.Is(err, graph.ErrUnknownLinkType):
		return KindContract
	default:
		return KindUnknown
	}
}
