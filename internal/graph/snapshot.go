package graph

import (
	"strings"
	"time"

	"github.com/minidosis/minidosis/api"
	"github.com/tidwall/btree"
)

// Snapshot is one complete graph produced by a rebuild. It is never
// mutated after Builder.Snapshot returns it.
type Snapshot struct {
	ID      string
	Root    string
	BuiltAt time.Time

	nodes        *btree.Map[string, *Node]
	images       map[string]string
	placeholders int
}

// EmptySnapshot returns a snapshot with no nodes, used before the first
// rebuild completes.
func EmptySnapshot() *Snapshot {
	return &Snapshot{
		nodes:  new(btree.Map[string, *Node]),
		images: map[string]string{},
	}
}

// Get returns the node with id or ErrNotFound.
func (s *Snapshot) Get(id string) (*Node, error) {
	n, ok := s.nodes.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return n, nil
}

func (s *Snapshot) Has(id string) bool {
	_, ok := s.nodes.Get(id)
	return ok
}

func (s *Snapshot) HasImage(hash string) bool {
	_, ok := s.images[hash]
	return ok
}

// ImagePath returns the absolute path of the image with the given hash.
func (s *Snapshot) ImagePath(hash string) (string, bool) {
	p, ok := s.images[hash]
	return p, ok
}

func (s *Snapshot) NumNodes() int {
	return s.nodes.Len()
}

// NumPlaceholders returns how many nodes were referenced but never defined.
func (s *Snapshot) NumPlaceholders() int {
	return s.placeholders
}

func (s *Snapshot) NumImages() int {
	return len(s.images)
}

// Each calls fn for every node in id order until fn returns false.
func (s *Snapshot) Each(fn func(n *Node) bool) {
	s.nodes.Scan(func(_ string, n *Node) bool {
		return fn(n)
	})
}

// Search implements Graph.
func (s *Snapshot) Search(query string) []*Node {
	q := strings.ToLower(query)
	var results []*Node
	s.Each(func(n *Node) bool {
		if n.Title != "" && strings.Contains(strings.ToLower(n.Title), q) {
			results = append(results, n)
		}
		return true
	})
	return results
}

// View serializes n, expanding each relation set into id/title pairs
// resolved against this snapshot.
func (s *Snapshot) View(n *Node) api.NodeView {
	return api.NodeView{
		ID:          n.ID,
		Title:       n.Title,
		Source:      n.SourcePath,
		Placeholder: n.Placeholder(),
		Content:     n.Content,
		Bases:       s.expand(n.Bases),
		Derived:     s.expand(n.Derived),
		Parents:     s.expand(n.Parents),
		Children:    s.expand(n.Children),
		Related:     s.expand(n.Related),
	}
}

func (s *Snapshot) expand(ids IDSet) []api.Link {
	links := make([]api.Link, 0, len(ids))
	for _, id := range ids.Sorted() {
		link := api.Link{ID: id}
		if other, ok := s.nodes.Get(id); ok {
			link.Title = other.Title
		}
		links = append(links, link)
	}
	return links
}
