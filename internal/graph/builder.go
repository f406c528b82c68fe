package graph

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minidosis/minidosis/api"
	"github.com/tidwall/btree"
)

var errBuilderSealed = errors.New("builder already produced a snapshot")

// Header is a content file header with its relation lists already split
// into ids.
type Header struct {
	Title    string
	Bases    []string
	Children []string
	Related  []string
}

// Builder resolves declared relations into a bidirectionally linked node
// set. Referenced ids that have not been defined yet become placeholders,
// so the final edge set does not depend on the order files are merged in.
//
// A Builder is private construction state for one rebuild. It is safe for
// concurrent use so parallel loaders can feed a single instance.
type Builder struct {
	mu     sync.Mutex
	nodes  *btree.Map[string, *Node]
	sealed bool
}

func NewBuilder() *Builder {
	return &Builder{nodes: new(btree.Map[string, *Node])}
}

// node returns the node for id, creating a placeholder if needed.
// Must be called with b.mu held.
func (b *Builder) node(id string) *Node {
	if n, ok := b.nodes.Get(id); ok {
		return n
	}
	n := newNode(id)
	b.nodes.Set(id, n)
	return n
}

// Merge records the definition of id found in sourcePath. Title and content
// replace whatever the node held before; edges only accumulate.
func (b *Builder) Merge(id, sourcePath string, h Header, content []*api.Element) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		return errBuilderSealed
	}

	n := b.node(id)
	n.Title = h.Title
	n.Content = content
	n.SourcePath = sourcePath

	if err := b.link(n, LinkBase, h.Bases); err != nil {
		return err
	}
	if err := b.link(n, LinkChild, h.Children); err != nil {
		return err
	}
	return b.link(n, LinkRelated, h.Related)
}

// Link adds a t edge from id to each of ids, plus the inverse edges.
func (b *Builder) Link(id string, t LinkType, ids []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		return errBuilderSealed
	}
	return b.link(b.node(id), t, ids)
}

// Must be called with b.mu held.
func (b *Builder) link(n *Node, t LinkType, ids []string) error {
	inverse, err := t.Inverse()
	if err != nil {
		return err
	}
	for _, other := range ids {
		if other == "" {
			continue
		}
		if err := n.addLink(t, other); err != nil {
			return err
		}
		if err := b.node(other).addLink(inverse, n.ID); err != nil {
			return err
		}
	}
	return nil
}

// SourceOf returns the file that defined id, if any.
func (b *Builder) SourceOf(id string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, ok := b.nodes.Get(id)
	if !ok || n.Placeholder() {
		return "", false
	}
	return n.SourcePath, true
}

// Len returns the number of nodes created so far, placeholders included.
func (b *Builder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nodes.Len()
}

// Snapshot seals the builder and returns the finished graph. The image
// store is handed over as well and must not be used afterwards.
func (b *Builder) Snapshot(images *ImageStore, root string) (*Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		return nil, errBuilderSealed
	}
	b.sealed = true

	s := &Snapshot{
		ID:      uuid.NewString(),
		Root:    root,
		BuiltAt: time.Now(),
		nodes:   b.nodes,
		images:  map[string]string{},
	}
	if images != nil {
		s.images = images.freeze()
	}
	b.nodes.Scan(func(_ string, n *Node) bool {
		if n.Placeholder() {
			s.placeholders++
		}
		return true
	})
	return s, nil
}
