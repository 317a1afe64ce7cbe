package graph

import "sync"

// Heap is the session-scoped identity map. It tracks at most one Node
// per live entity instance; entities are keyed by instance identity,
// so they must be comparable (in practice, pointers).
//
// The heap references entities, it never owns them: detaching removes
// tracking without touching the database, and clearing the heap ends
// the session for all tracked entities at once.
type Heap struct {
	mu    sync.Mutex
	nodes map[any]*Node
	seq   int
}

// New returns an empty heap.
func New() *Heap {
	return &Heap{nodes: make(map[any]*Node)}
}

// Get returns the node tracking the entity, if any.
func (h *Heap) Get(entity any) (*Node, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n, ok := h.nodes[entity]
	return n, ok
}

// Attach starts tracking the entity with the given initial state and
// returns its node. Attaching an already-attached entity is a no-op
// returning the existing node; the given state is ignored in that case.
func (h *Heap) Attach(entity any, role string, state *State) *Node {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n, ok := h.nodes[entity]; ok {
		return n
	}
	h.seq++
	n := &Node{heap: h, role: role, entity: entity, state: state, seq: h.seq}
	h.nodes[entity] = n
	return n
}

// Detach stops tracking the entity. The database is not touched.
func (h *Heap) Detach(entity any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.nodes, entity)
}

// Has reports whether the entity is tracked.
func (h *Heap) Has(entity any) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.nodes[entity]
	return ok
}

// Len returns the number of tracked entities.
func (h *Heap) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.nodes)
}

// Clear detaches all entities, ending the session's tracking.
func (h *Heap) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nodes = make(map[any]*Node)
}
