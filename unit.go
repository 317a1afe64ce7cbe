package loom

import (
	"context"
	"fmt"
	"sync"

	"github.com/syssam/loom/dialect"
	sqldialect "github.com/syssam/loom/dialect/sql"
	"github.com/syssam/loom/graph"
	"github.com/syssam/loom/plan"
	"github.com/syssam/loom/schema"
)

type opKind uint8

const (
	opPersist opKind = iota
	opDelete
)

type unitState uint8

const (
	stateCollecting unitState = iota
	statePlanning
	stateExecuting
	stateCommitted
	stateRolledBack
)

// registration is one entity scheduled in the current run.
type registration struct {
	node    *graph.Node
	entity  Entity
	def     *schema.Definition
	op      opKind
	cascade bool
	isNew   bool

	// planning scratch, filled during Run
	values  map[string]any // extracted field values
	colVals map[string]any // column-keyed mapped values
	cmd     *plan.Command  // nil when the diff found no change
}

// Unit is one unit of work: it collects persist and delete
// registrations, expands them through the relation resolver, plans the
// command sequence and executes it inside a single database
// transaction.
//
// A unit is not resumable: after Run it rejects further registrations,
// and a failed run must be retried on a fresh unit. A failed Persist
// or Delete closes the unit and frees its claims, so an abandoned
// unit never blocks later runs over the same entities.
type Unit struct {
	session *Session

	mu       sync.Mutex
	state    unitState
	err      error // first collecting error; poisons the run
	regs     []*registration
	byNode   map[*graph.Node]*registration
	edges    []edge
	binds    []fkBind
	setNulls []setNull
	pivots   []pivot
	claimed  []*graph.Node
}

func newUnit(s *Session) *Unit {
	return &Unit{
		session: s,
		byNode:  make(map[*graph.Node]*registration),
	}
}

// Persist schedules the entity (and, per cascade policy, its reachable
// relations) for insertion or update. With cascade set, new related
// entities are attached and scheduled even where the schema declares
// no cascade.
func (u *Unit) Persist(entity Entity, cascade bool) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.state != stateCollecting {
		return ErrUnitClosed
	}
	_, err := u.register(entity, opPersist, cascade)
	if err != nil {
		u.fail(err)
	}
	return err
}

// Delete schedules the entity for removal, propagating to dependents
// per their relation descriptors' cascade policies.
func (u *Unit) Delete(entity Entity) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.state != stateCollecting {
		return ErrUnitClosed
	}
	_, err := u.register(entity, opDelete, false)
	if err != nil {
		u.fail(err)
	}
	return err
}

// Abort discards the working set and frees every node the unit
// claimed. Aborting before Run costs nothing; on a closed unit it is
// a no-op.
func (u *Unit) Abort() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.state != stateCollecting {
		return
	}
	u.state = stateRolledBack
	u.release()
}

// fail closes the unit after a collecting error. Claims are released
// right away so an abandoned unit does not keep its nodes scheduled;
// Run surfaces the error.
func (u *Unit) fail(err error) {
	if u.err == nil {
		u.err = err
	}
	u.state = stateRolledBack
	u.release()
}

// Run closes the working set, plans the command sequence and executes
// it in one transaction. It never panics on failure: the outcome is
// carried by the returned Result. Errors raised while collecting or
// planning abort the run before any database I/O.
func (u *Unit) Run(ctx context.Context) *Result {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.state != stateCollecting {
		if u.err != nil {
			return &Result{err: u.err}
		}
		return &Result{err: ErrUnitClosed}
	}
	u.state = statePlanning
	res := u.run(ctx)
	if res.err != nil {
		u.state = stateRolledBack
		u.release()
		u.session.log.DebugContext(ctx, "loom: run rolled back", "err", res.err)
	} else {
		u.state = stateCommitted
		u.session.log.DebugContext(ctx, "loom: run committed", "entities", len(u.regs))
	}
	return res
}

// RunE is the error-returning variant of Run.
func (u *Unit) RunE(ctx context.Context) error {
	return u.Run(ctx).Err()
}

func (u *Unit) run(ctx context.Context) *Result {
	entities := make([]any, len(u.regs))
	for i, reg := range u.regs {
		entities[i] = reg.entity
	}
	cmds, err := u.buildPlan()
	if err != nil {
		return &Result{err: err}
	}
	if len(cmds) == 0 {
		// Nothing changed; no transaction is opened.
		u.release()
		return &Result{entities: entities}
	}
	ordered, err := plan.Schedule(cmds)
	if err != nil {
		return &Result{err: err}
	}
	u.session.log.DebugContext(ctx, "loom: plan scheduled", "commands", len(ordered))

	u.state = stateExecuting
	drv := u.session.drv
	tx, err := drv.Tx(ctx)
	if err != nil {
		return &Result{err: &AdapterError{Op: "begin", Err: err}}
	}
	for _, cmd := range ordered {
		affected, err := plan.Execute(ctx, tx, drv.Dialect(), cmd)
		if err != nil {
			return &Result{err: rollback(tx, commandError(cmd, err))}
		}
		if affected == 0 && cmd.Kind != plan.KindInsert && cmd.Def != nil {
			return &Result{err: rollback(tx, &StaleStateError{Role: cmd.Def.Role, Table: cmd.Table})}
		}
	}
	if err := tx.Commit(); err != nil {
		return &Result{err: &AdapterError{Op: "commit", Err: err}}
	}
	u.finalize(ordered)
	return &Result{entities: entities}
}

// buildPlan generates the commands for the working set. Foreign keys
// derived from relations are filled in a second pass so they can
// reference the inserts of entities registered later.
func (u *Unit) buildPlan() ([]*plan.Command, error) {
	for _, reg := range u.regs {
		m, err := u.session.Mapper(reg.def.Role)
		if err != nil {
			return nil, err
		}
		switch reg.op {
		case opPersist:
			if reg.values, err = m.Extract(reg.entity); err != nil {
				return nil, err
			}
			fetch, err := m.FetchFields(reg.entity)
			if err != nil {
				return nil, err
			}
			reg.colVals = make(map[string]any, len(fetch))
			for field, v := range fetch {
				if c, ok := reg.def.ColumnByField(field); ok {
					reg.colVals[c.Name] = v
				}
			}
			if reg.isNew {
				if reg.cmd, err = plan.Insert(reg.def, reg.colVals, reg.node); err != nil {
					return nil, err
				}
			}
		case opDelete:
			if reg.cmd, err = plan.Delete(reg.def, reg.node.State().Snapshot(), reg.node); err != nil {
				return nil, err
			}
		}
	}
	overrides := make(map[*registration]map[string]any, len(u.regs))
	for _, reg := range u.regs {
		if reg.op != opPersist {
			continue
		}
		ov, err := u.foreignKeys(reg)
		if err != nil {
			return nil, err
		}
		overrides[reg] = ov
	}
	if err := u.applyBinds(overrides); err != nil {
		return nil, err
	}
	for _, reg := range u.regs {
		if reg.op != opPersist {
			continue
		}
		var err error
		if reg.isNew {
			for col, v := range overrides[reg] {
				reg.cmd.SetAssign(col, v)
			}
			continue
		}
		for col, v := range overrides[reg] {
			reg.colVals[col] = v
		}
		if reg.cmd, err = plan.Diff(reg.def, reg.node.State().Snapshot(), reg.colVals, reg.node); err != nil {
			return nil, err
		}
	}

	cmds := make([]*plan.Command, 0, len(u.regs)+len(u.setNulls)+len(u.pivots))
	for _, reg := range u.regs {
		if reg.cmd != nil {
			cmds = append(cmds, reg.cmd)
		}
	}
	for _, sn := range u.setNulls {
		def, err := u.session.Describe(sn.node.Role())
		if err != nil {
			return nil, err
		}
		cmd, err := plan.SetNull(def, sn.column, sn.node.State().Snapshot(), sn.node)
		if err != nil {
			return nil, err
		}
		if parent := u.cmdOf(sn.parent); parent != nil {
			parent.DependsOn(cmd, false)
		}
		cmds = append(cmds, cmd)
	}
	pivotCmds, err := u.pivotCommands()
	if err != nil {
		return nil, err
	}
	cmds = append(cmds, pivotCmds...)

	for _, e := range u.edges {
		before, after := u.cmdOf(e.before), u.cmdOf(e.after)
		if before == nil || after == nil {
			continue
		}
		if e.column != "" {
			after.DependsOn(before, e.deferrable, e.column)
		} else if before != after {
			after.DependsOn(before, false)
		}
	}
	return cmds, nil
}

// applyBinds fills the foreign keys of children reached through a
// parent's referencing side. A value the child carries itself, either
// as a mapped field or through its own back-reference, wins over the
// derived one.
func (u *Unit) applyBinds(overrides map[*registration]map[string]any) error {
	for _, b := range u.binds {
		creg := u.byNode[b.node]
		if creg == nil || creg.op != opPersist {
			continue
		}
		ov := overrides[creg]
		if _, set := ov[b.column]; set {
			continue
		}
		if _, set := creg.colVals[b.column]; set {
			continue
		}
		pdef, err := u.session.Describe(b.parent.Role())
		if err != nil {
			return err
		}
		pk := pdef.PrimaryKey[0]
		if preg := u.byNode[b.parent]; preg != nil && preg.op == opPersist && preg.isNew {
			ov[b.column] = &plan.ColumnRef{Cmd: preg.cmd, Column: pk}
			continue
		}
		v, ok := b.parent.State().Get(pk)
		if !ok {
			return fmt.Errorf("loom: %s entity has no committed %s value to bind %s.%s", b.parent.Role(), pk, b.node.Role(), b.column)
		}
		ov[b.column] = v
	}
	return nil
}

// foreignKeys derives the owning foreign-key column values of a
// persist registration from its relation fields.
func (u *Unit) foreignKeys(reg *registration) (map[string]any, error) {
	overrides := make(map[string]any)
	for i := range reg.def.Relations {
		rel := &reg.def.Relations[i]
		if !rel.Owning || rel.Rel == schema.M2M {
			continue
		}
		raw, ok := reg.values[rel.Name]
		if !ok {
			continue
		}
		if raw == nil {
			overrides[rel.Column] = nil
			continue
		}
		items := relItems(raw)
		if len(items) == 0 || items[0] == nil {
			overrides[rel.Column] = nil
			continue
		}
		v, err := u.relatedKey(reg, rel, items[0])
		if err != nil {
			return nil, err
		}
		overrides[rel.Column] = v
	}
	return overrides, nil
}

// relatedKey resolves the key value the foreign key must carry: the
// lookup key of an unresolved reference, the committed key of a
// managed entity, or a late-bound reference to the related insert.
func (u *Unit) relatedKey(reg *registration, rel *schema.Relation, item any) (any, error) {
	if ref, ok := item.(*Reference); ok {
		v, resolved := ref.Value()
		if !resolved || v == nil {
			return ref.Key(), nil
		}
		item = v
	}
	ent, ok := item.(Entity)
	if !ok {
		return nil, fmt.Errorf("loom: relation %s.%s holds unsupported value type %T", reg.def.Role, rel.Name, item)
	}
	targetCol := rel.TargetColumn
	if targetCol == "" {
		tdef, err := u.session.Describe(rel.Target)
		if err != nil {
			return nil, err
		}
		targetCol = tdef.PrimaryKey[0]
	}
	tnode, tracked := u.session.heap.Get(ent)
	if !tracked {
		return nil, &UnscheduledDependencyError{Role: reg.def.Role, Relation: rel.Name, Target: rel.Target}
	}
	if treg := u.byNode[tnode]; treg != nil && treg.op == opPersist && treg.isNew {
		return &plan.ColumnRef{Cmd: treg.cmd, Column: targetCol}, nil
	}
	if v, ok := tnode.State().Get(targetCol); ok {
		return v, nil
	}
	if u.byNode[tnode] == nil && tnode.State().Status() == graph.StatusScheduled {
		return nil, &ConcurrentModificationError{Role: ent.Role()}
	}
	return nil, fmt.Errorf("loom: relation %s.%s: related %s entity has no committed %s value", reg.def.Role, rel.Name, rel.Target, targetCol)
}

// pivotCommands builds the many-to-many link inserts. A link row is
// generated when at least one of its endpoints is inserted in this run.
func (u *Unit) pivotCommands() ([]*plan.Command, error) {
	var cmds []*plan.Command
	for _, p := range u.pivots {
		srcReg := u.byNode[p.source]
		srcVal, srcCmd, err := u.pivotKey(p.source)
		if err != nil {
			return nil, err
		}
		var (
			tgtVal any
			tgtCmd *plan.Command
		)
		newEndpoint := srcReg != nil && srcReg.isNew
		if ent, ok := p.target.(Entity); ok {
			tnode, tracked := u.session.heap.Get(ent)
			if !tracked {
				return nil, &UnscheduledDependencyError{Role: p.source.Role(), Relation: p.rel.Name, Target: p.rel.Target}
			}
			if treg := u.byNode[tnode]; treg != nil && treg.isNew {
				newEndpoint = true
			}
			if tgtVal, tgtCmd, err = u.pivotKey(tnode); err != nil {
				return nil, err
			}
		} else {
			tgtVal = p.target
		}
		if !newEndpoint {
			// Both endpoints were already persisted; the link row is
			// assumed to exist from the run that created them.
			continue
		}
		cmd := plan.Pivot(p.rel.Through, srcVal, tgtVal)
		if srcCmd != nil {
			cmd.DependsOn(srcCmd, false)
		}
		if tgtCmd != nil {
			cmd.DependsOn(tgtCmd, false)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

// pivotKey returns the primary-key value of a pivot endpoint, late
// bound when the endpoint is inserted in this run.
func (u *Unit) pivotKey(node *graph.Node) (any, *plan.Command, error) {
	def, err := u.session.Describe(node.Role())
	if err != nil {
		return nil, nil, err
	}
	pk := def.PrimaryKey[0]
	if reg := u.byNode[node]; reg != nil && reg.op == opPersist && reg.isNew {
		return &plan.ColumnRef{Cmd: reg.cmd, Column: pk}, reg.cmd, nil
	}
	if v, ok := node.State().Get(pk); ok {
		return v, u.cmdOf(node), nil
	}
	return nil, nil, fmt.Errorf("loom: %s entity has no committed %s value for link row", node.Role(), pk)
}

func (u *Unit) cmdOf(node *graph.Node) *plan.Command {
	if reg := u.byNode[node]; reg != nil {
		return reg.cmd
	}
	return nil
}

// finalize applies the committed outcome to the heap: snapshots absorb
// the written values, new entities become managed, deleted entities
// are detached, and database-generated keys are written back into the
// entities.
func (u *Unit) finalize(ordered []*plan.Command) {
	pending := make(map[*graph.Node]map[string]any)
	for _, cmd := range ordered {
		node, ok := cmd.Ref.(*graph.Node)
		if !ok || node == nil {
			continue
		}
		vals := pending[node]
		if vals == nil {
			vals = make(map[string]any)
			pending[node] = vals
		}
		for k, v := range cmd.Resolved {
			vals[k] = v
		}
	}
	for _, reg := range u.regs {
		switch reg.op {
		case opPersist:
			u.writeBack(reg, pending[reg.node])
			reg.node.Commit(u, graph.StatusManaged, pending[reg.node])
		case opDelete:
			reg.node.Commit(u, graph.StatusDeleted, nil)
			u.session.heap.Detach(reg.entity)
		}
	}
	for _, sn := range u.setNulls {
		sn.node.Commit(u, graph.StatusManaged, pending[sn.node])
	}
}

// writeBack hydrates generated key columns into the entity: the
// database-reported auto-increment value or the client-generated UUID
// the caller never set.
func (u *Unit) writeBack(reg *registration, committed map[string]any) {
	if !reg.isNew || len(committed) == 0 {
		return
	}
	wb := make(map[string]any)
	for _, pk := range reg.def.PrimaryKey {
		col, ok := reg.def.Column(pk)
		if !ok || col.Generated == schema.GenNone {
			continue
		}
		if _, set := reg.colVals[pk]; set {
			continue
		}
		if v, ok := committed[pk]; ok {
			wb[pk] = v
		}
	}
	if len(wb) == 0 {
		return
	}
	m, err := u.session.Mapper(reg.def.Role)
	if err != nil {
		return
	}
	if _, err := m.Hydrate(reg.entity, wb); err != nil {
		u.session.log.Debug("loom: generated key write-back failed", "role", reg.def.Role, "err", err)
	}
}

// release frees every node the run claimed, restoring pre-run
// statuses. Called on any non-committed outcome.
func (u *Unit) release() {
	for _, n := range u.claimed {
		n.Release(u)
	}
}

// rollback aborts the transaction and returns err, noting a failed
// rollback alongside it.
func rollback(tx dialect.Tx, err error) error {
	if rerr := tx.Rollback(); rerr != nil {
		err = fmt.Errorf("%w: rolling back transaction: %v", err, rerr)
	}
	return err
}

func commandError(cmd *plan.Command, err error) error {
	if sqldialect.IsConstraintError(err) {
		return NewConstraintError(cmd.String(), err)
	}
	return &AdapterError{Op: cmd.String(), Err: err}
}
