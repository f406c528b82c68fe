package graph

import (
	"errors"
	"sort"

	"github.com/minidosis/minidosis/api"
)

var ErrNotFound = errors.New("node not found")

// IDSet is a set of node ids. Relations are stored as ids, never as node
// pointers, so a snapshot owns all of its nodes outright.
type IDSet map[string]struct{}

// Add inserts id. Adding an existing id is a no-op.
func (s IDSet) Add(id string) {
	s[id] = struct{}{}
}

// Has reports whether id is in the set.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of ids.
func (s IDSet) Len() int {
	return len(s)
}

// Sorted returns the ids in ascending order.
func (s IDSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Node is one topic of the graph.
//
// Nodes handed out by a published Snapshot are shared between readers and
// must be treated as read-only.
type Node struct {
	ID         string
	Title      string
	Content    []*api.Element
	SourcePath string // Defining file; empty for placeholders

	Bases    IDSet
	Derived  IDSet
	Parents  IDSet
	Children IDSet
	Related  IDSet
}

func newNode(id string) *Node {
	return &Node{
		ID:       id,
		Bases:    make(IDSet),
		Derived:  make(IDSet),
		Parents:  make(IDSet),
		Children: make(IDSet),
		Related:  make(IDSet),
	}
}

// Placeholder reports whether the node exists only because another node
// referenced it.
func (n *Node) Placeholder() bool {
	return n.SourcePath == ""
}

// Links returns the relation set for t.
func (n *Node) Links(t LinkType) (IDSet, error) {
	switch t {
	case LinkBase:
		return n.Bases, nil
	case LinkDerived:
		return n.Derived, nil
	case LinkChild:
		return n.Children, nil
	case LinkParent:
		return n.Parents, nil
	case LinkRelated:
		return n.Related, nil
	default:
		return nil, unknownLinkType(t)
	}
}

func (n *Node) addLink(t LinkType, id string) error {
	set, err := n.Links(t)
	if err != nil {
		return err
	}
	set.Add(id)
	return nil
}

// Graph is the read-only query surface shared by a Snapshot and the
// HotSwapGraph that publishes snapshots.
type Graph interface {
	Get(id string) (*Node, error)
	Has(id string) bool
	HasImage(hash string) bool
	ImagePath(hash string) (string, bool)
	NumNodes() int
	// Search returns the titled nodes whose title contains query,
	// ignoring case, in node-iteration order.
	Search(query string) []*Node
}
