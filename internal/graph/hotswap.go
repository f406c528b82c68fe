package graph

import (
	"sync"

	"github.com/minidosis/minidosis/api"
)

// HotSwapGraph is a thread-safe wrapper that publishes the current snapshot.
// Readers never see a partially built graph: a rebuild constructs a new
// Snapshot privately and Swap replaces the old one in a single step.
type HotSwapGraph struct {
	mu      sync.RWMutex
	current *Snapshot
}

// NewHotSwapGraph wraps initial. A nil initial publishes an empty snapshot.
func NewHotSwapGraph(initial *Snapshot) *HotSwapGraph {
	if initial == nil {
		initial = EmptySnapshot()
	}
	return &HotSwapGraph{current: initial}
}

// Swap atomically replaces the current snapshot and returns the previous one.
func (h *HotSwapGraph) Swap(next *Snapshot) *Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := h.current
	h.current = next
	return prev
}

// Current returns the published snapshot. Callers that issue several
// queries and need them to agree should pin one snapshot this way.
func (h *HotSwapGraph) Current() *Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Get delegates to the current snapshot.
func (h *HotSwapGraph) Get(id string) (*Node, error) {
	return h.Current().Get(id)
}

// Has delegates to the current snapshot.
func (h *HotSwapGraph) Has(id string) bool {
	return h.Current().Has(id)
}

// HasImage delegates to the current snapshot.
func (h *HotSwapGraph) HasImage(hash string) bool {
	return h.Current().HasImage(hash)
}

// ImagePath delegates to the current snapshot.
func (h *HotSwapGraph) ImagePath(hash string) (string, bool) {
	return h.Current().ImagePath(hash)
}

// NumNodes delegates to the current snapshot.
func (h *HotSwapGraph) NumNodes() int {
	return h.Current().NumNodes()
}

// Search delegates to the current snapshot.
func (h *HotSwapGraph) Search(query string) []*Node {
	return h.Current().Search(query)
}

// View resolves id and serializes it against a single snapshot.
func (h *HotSwapGraph) View(id string) (api.NodeView, error) {
	s := h.Current()
	n, err := s.Get(id)
	if err != nil {
		return api.NodeView{}, err
	}
	return s.View(n), nil
}

var (
	_ Graph = (*Snapshot)(nil)
	_ Graph = (*HotSwapGraph)(nil)
)
