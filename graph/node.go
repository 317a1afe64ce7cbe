package graph

// Node is the per-entity bookkeeping record of the heap. It ties an
// entity instance to its role, tracked state and, while a unit of work
// is in flight, to the run that claimed it.
type Node struct {
	heap   *Heap
	role   string
	entity any
	state  *State
	seq    int // attach order, stable across the heap's lifetime
	owner  any // in-flight unit holding the node, nil when free
}

// Role returns the entity's logical type name.
func (n *Node) Role() string { return n.role }

// Entity returns the tracked entity instance.
func (n *Node) Entity() any { return n.entity }

// State returns the node's tracked state.
func (n *Node) State() *State { return n.state }

// Seq returns the node's attach sequence number.
func (n *Node) Seq() int { return n.seq }

// Claim marks the node as held by the given unit of work and tags its
// state as scheduled. It reports false when a different unit already
// holds the node. Claiming twice from the same owner is a no-op.
func (n *Node) Claim(owner any) bool {
	n.heap.mu.Lock()
	defer n.heap.mu.Unlock()
	switch n.owner {
	case nil:
		n.owner = owner
		n.state.schedule()
		return true
	case owner:
		return true
	default:
		return false
	}
}

// Release frees a claimed node and restores its pre-run status. Only
// the claiming owner may release.
func (n *Node) Release(owner any) {
	n.heap.mu.Lock()
	defer n.heap.mu.Unlock()
	if n.owner == owner {
		n.owner = nil
		n.state.restore()
	}
}

// Commit finalizes a claimed node after a successful run: the snapshot
// absorbs the committed values, the status becomes final and the claim
// is dropped. The heap entry itself is detached separately when the
// final status is StatusDeleted.
func (n *Node) Commit(owner any, status Status, values map[string]any) {
	n.heap.mu.Lock()
	defer n.heap.mu.Unlock()
	if n.owner != owner {
		return
	}
	n.owner = nil
	n.state.commit(status, values)
}
