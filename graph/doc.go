// Package graph holds the runtime identity graph of the loom
// persistence engine: the Heap (identity map), the per-entity Node and
// its tracked State.
//
// Entities are referenced by stable identity, never by embedding one
// inside another, which lets the engine walk self-referential and
// cyclic entity graphs without deep structural copies.
//
// # Lifecycle
//
// A node is created the first time an entity is attached:
//
//	h := graph.New()
//	n := h.Attach(user, "user", graph.NewState(graph.StatusNew, nil))
//
// While a unit of work is in flight it claims the nodes it schedules;
// a second concurrent run touching the same node is rejected instead
// of silently interleaving. On commit the node absorbs the committed
// column values into its snapshot; on rollback it is restored
// untouched.
package graph
