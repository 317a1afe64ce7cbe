package loom

import (
	"fmt"
	"reflect"

	"github.com/syssam/loom/graph"
	"github.com/syssam/loom/schema"
)

// The resolver expands a persist or delete registration into the full
// working set: it walks the role's relation descriptors, attaches or
// rejects related entities per cascade policy and records the
// dependency edges the scheduler will honor.

// edge orders two nodes: before's command must execute ahead of
// after's. Deferrable edges carry the foreign-key column on after's
// table that a cycle-breaking pass may split into a follow-up update.
type edge struct {
	before, after *graph.Node
	deferrable    bool
	column        string
}

// fkBind records that a child's foreign-key column takes the parent's
// key value. Recorded when a persist reaches the child through the
// parent's referencing side, where the child entity may not carry the
// back-reference field itself.
type fkBind struct {
	node   *graph.Node // child holding the FK column
	column string
	parent *graph.Node
}

// setNull records a child whose foreign key is nulled before its
// parent row is deleted.
type setNull struct {
	node   *graph.Node
	column string
	parent *graph.Node
}

// pivot records one many-to-many link row to insert. target is either
// a tracked Entity or a raw key taken from an unresolved Reference.
type pivot struct {
	rel    *schema.Relation
	source *graph.Node
	target any
}

// register claims the entity's node, records the registration and
// expands its relations. Re-registering coalesces into the existing
// registration.
func (u *Unit) register(entity Entity, op opKind, cascade bool) (*registration, error) {
	role := entity.Role()
	def, err := u.session.Describe(role)
	if err != nil {
		return nil, err
	}
	heap := u.session.heap
	node, tracked := heap.Get(entity)
	if !tracked {
		if op == opDelete {
			return nil, fmt.Errorf("loom: cannot delete untracked %s entity", role)
		}
		node = heap.Attach(entity, role, graph.NewState(graph.StatusNew, nil))
	}
	if existing := u.byNode[node]; existing != nil {
		if existing.op != op {
			return nil, fmt.Errorf("loom: %s entity registered for both persist and delete in one run", role)
		}
		existing.cascade = existing.cascade || cascade
		return existing, nil
	}
	isNew := node.State().Status() == graph.StatusNew
	if op == opDelete && isNew {
		return nil, fmt.Errorf("loom: cannot delete never-persisted %s entity", role)
	}
	if !node.Claim(u) {
		return nil, &ConcurrentModificationError{Role: role}
	}
	u.claimed = append(u.claimed, node)
	reg := &registration{
		node:    node,
		entity:  entity,
		def:     def,
		op:      op,
		cascade: cascade,
		isNew:   isNew,
	}
	u.regs = append(u.regs, reg)
	u.byNode[node] = reg
	if err := u.expand(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// expand walks the registration's relation fields and schedules,
// rejects or links the related entities.
func (u *Unit) expand(reg *registration) error {
	m, err := u.session.Mapper(reg.def.Role)
	if err != nil {
		return err
	}
	values, err := m.Extract(reg.entity)
	if err != nil {
		return err
	}
	for i := range reg.def.Relations {
		rel := &reg.def.Relations[i]
		raw, ok := values[rel.Name]
		if !ok || raw == nil {
			continue
		}
		for _, item := range relItems(raw) {
			if item == nil {
				continue
			}
			switch reg.op {
			case opPersist:
				err = u.expandPersist(reg, rel, item)
			case opDelete:
				err = u.expandDelete(reg, rel, item)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (u *Unit) expandPersist(reg *registration, rel *schema.Relation, item any) error {
	if ref, ok := item.(*Reference); ok {
		v, resolved := ref.Value()
		if !resolved || v == nil {
			// An unresolved reference already carries the persisted
			// key: the foreign key is computable without loading or
			// scheduling the target.
			if rel.Rel == schema.M2M {
				u.pivots = append(u.pivots, pivot{rel: rel, source: reg.node, target: ref.Key()})
			}
			return nil
		}
		item = v
	}
	ent, ok := item.(Entity)
	if !ok {
		return fmt.Errorf("loom: relation %s.%s holds unsupported value type %T", reg.def.Role, rel.Name, item)
	}
	heap := u.session.heap
	tnode, tracked := heap.Get(ent)
	effective := rel.Cascade
	if reg.cascade {
		effective = schema.MaxCascade(effective, schema.CascadeAll)
	}
	unscheduled := !tracked || (u.byNode[tnode] == nil && tnode.State().Status() == graph.StatusNew)
	if unscheduled {
		if !effective.Persists() {
			return &UnscheduledDependencyError{Role: reg.def.Role, Relation: rel.Name, Target: rel.Target}
		}
		treg, err := u.register(ent, opPersist, reg.cascade)
		if err != nil {
			return err
		}
		tnode = treg.node
	}
	switch {
	case rel.Rel == schema.M2M:
		u.pivots = append(u.pivots, pivot{rel: rel, source: reg.node, target: ent})
	case rel.Owning:
		// This entity holds the foreign key: the related row must
		// exist first so its key is known.
		u.edges = append(u.edges, edge{before: tnode, after: reg.node, deferrable: rel.Nullable, column: rel.Column})
	default:
		// The related entity holds the foreign key back to this one.
		u.edges = append(u.edges, edge{before: reg.node, after: tnode, deferrable: rel.Nullable, column: rel.Column})
		u.binds = append(u.binds, fkBind{node: tnode, column: rel.Column, parent: reg.node})
	}
	return nil
}

func (u *Unit) expandDelete(reg *registration, rel *schema.Relation, item any) error {
	if ref, ok := item.(*Reference); ok {
		v, resolved := ref.Value()
		if !resolved || v == nil {
			return nil
		}
		item = v
	}
	ent, ok := item.(Entity)
	if !ok {
		return fmt.Errorf("loom: relation %s.%s holds unsupported value type %T", reg.def.Role, rel.Name, item)
	}
	tnode, tracked := u.session.heap.Get(ent)
	if !tracked || rel.Rel == schema.M2M {
		// Delete cascades reach loaded, tracked entities only; pivot
		// rows are expected to be covered by ON DELETE actions.
		return nil
	}
	switch {
	case rel.Cascade == schema.CascadeSetNull && !rel.Owning:
		if tnode.State().Status() != graph.StatusManaged && u.byNode[tnode] == nil {
			return nil
		}
		if !tnode.Claim(u) {
			return &ConcurrentModificationError{Role: ent.Role()}
		}
		u.claimed = append(u.claimed, tnode)
		u.setNulls = append(u.setNulls, setNull{node: tnode, column: rel.Column, parent: reg.node})
	case rel.Cascade.Deletes():
		treg, err := u.register(ent, opDelete, false)
		if err != nil {
			return err
		}
		if rel.Owning {
			// This row references the target: it goes first.
			u.edges = append(u.edges, edge{before: reg.node, after: treg.node})
		} else {
			// The target references this row: it goes first.
			u.edges = append(u.edges, edge{before: treg.node, after: reg.node})
		}
	}
	return nil
}

// relItems normalizes a relation field value into a flat item list:
// a single entity or reference, or any slice of them.
func relItems(raw any) []any {
	switch v := raw.(type) {
	case []any:
		return v
	case []Entity:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out
	case *Reference, Entity:
		return []any{v}
	}
	rv := reflect.ValueOf(raw)
	if rv.Kind() == reflect.Slice {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out
	}
	return []any{raw}
}
