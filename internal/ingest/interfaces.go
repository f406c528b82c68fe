package ingest

import "github.com/minidosis/minidosis/internal/markup"

// Grammar turns the raw text of a content file into a header and a content
// tree. hooks.Image is invoked synchronously for every embedded image.
// markup.Parser is the default implementation.
type Grammar interface {
	Parse(raw string, hooks markup.Hooks) (*markup.Document, error)
}
