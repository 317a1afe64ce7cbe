package plan

import "sort"

// Schedule orders the commands into a dependency-safe execution
// sequence.
//
// Ordering rules:
//   - a command never runs before the commands it depends on
//   - ties break on input order, so two runs over the same
//     registration sequence produce identical statement order
//   - a cycle among inserts is broken by splitting one insert: its
//     deferrable foreign-key columns move into a new update command
//     scheduled after the cycle members
//
// Schedule returns a *CycleError when a cycle remains after the
// deferred-update pass.
func Schedule(cmds []*Command) ([]*Command, error) {
	all := make([]*Command, len(cmds))
	copy(all, cmds)
	for i, c := range all {
		c.seq = i
	}
	indegree := make(map[*Command]int, len(all))
	dependents := make(map[*Command][]*Command, len(all))
	pending := make(map[*Command]bool, len(all))
	for _, c := range all {
		pending[c] = true
	}
	for _, c := range all {
		for _, d := range c.Deps {
			if d.On == nil || !pending[d.On] {
				continue
			}
			indegree[c]++
			dependents[d.On] = append(dependents[d.On], c)
		}
	}

	var ready []*Command
	for _, c := range all {
		if indegree[c] == 0 {
			ready = append(ready, c)
		}
	}
	out := make([]*Command, 0, len(all))
	for len(out) < len(all) {
		if len(ready) == 0 {
			split, ok := breakCycle(all, pending, indegree, dependents)
			if !ok {
				return nil, cycleError(all, pending)
			}
			all = append(all, split.update)
			pending[split.update] = true
			if indegree[split.insert] == 0 {
				ready = append(ready, split.insert)
			}
			continue
		}
		sort.Slice(ready, func(i, j int) bool { return ready[i].seq < ready[j].seq })
		next := ready[0]
		ready = ready[1:]
		out = append(out, next)
		delete(pending, next)
		for _, dep := range dependents[next] {
			indegree[dep]--
			if indegree[dep] == 0 && pending[dep] {
				ready = append(ready, dep)
			}
		}
	}
	return out, nil
}

type splitResult struct {
	insert *Command
	update *Command
}

// breakCycle picks the earliest-registered pending insert that has an
// unsatisfied deferrable dependency and splits its deferrable columns
// into a follow-up update. The update depends on the insert itself and
// on every command the deferred columns were waiting for.
func breakCycle(all []*Command, pending map[*Command]bool, indegree map[*Command]int, dependents map[*Command][]*Command) (splitResult, bool) {
	var insert *Command
	for _, c := range all {
		if !pending[c] || c.Kind != KindInsert {
			continue
		}
		if !hasDeferrable(c, pending) {
			continue
		}
		if insert == nil || c.seq < insert.seq {
			insert = c
		}
	}
	if insert == nil {
		return splitResult{}, false
	}

	update := &Command{
		Kind:   KindUpdate,
		Def:    insert.Def,
		Table:  insert.Table,
		PKCols: insert.PKCols,
		Ref:    insert.Ref,
		seq:    len(all),
	}
	// The row's key may itself be generated by the insert, so the
	// update's key values are late-bound to the insert's outcome.
	for _, pk := range insert.PKCols {
		update.PKVals = append(update.PKVals, &ColumnRef{Cmd: insert, Column: pk})
	}

	deferred := make(map[string]bool)
	var kept []Dep
	for _, d := range insert.Deps {
		if d.Deferrable && pending[d.On] {
			moved := false
			for _, col := range d.Columns {
				if assignValue(insert.Assigns, col) != nil {
					deferred[col] = true
					moved = true
				}
			}
			indegree[insert]--
			dependents[d.On] = removeDependent(dependents[d.On], insert)
			// A dep whose column the insert never assigns orders
			// nothing; it is dropped instead of deferred.
			if moved {
				update.Deps = append(update.Deps, Dep{On: d.On})
				dependents[d.On] = append(dependents[d.On], update)
				indegree[update]++
			}
			continue
		}
		kept = append(kept, d)
	}
	insert.Deps = kept

	var keptAssigns []Assign
	for _, a := range insert.Assigns {
		if deferred[a.Column] {
			update.Assigns = append(update.Assigns, a)
			continue
		}
		keptAssigns = append(keptAssigns, a)
	}
	insert.Assigns = keptAssigns

	update.Deps = append(update.Deps, Dep{On: insert})
	indegree[update]++
	dependents[insert] = append(dependents[insert], update)
	return splitResult{insert: insert, update: update}, true
}

// hasDeferrable reports whether the command carries an unsatisfied
// deferrable dependency whose columns it actually assigns; deferring a
// column the insert never writes would produce an empty update.
func hasDeferrable(c *Command, pending map[*Command]bool) bool {
	for _, d := range c.Deps {
		if !d.Deferrable || !pending[d.On] {
			continue
		}
		for _, col := range d.Columns {
			if assignValue(c.Assigns, col) != nil {
				return true
			}
		}
	}
	return false
}

func removeDependent(deps []*Command, c *Command) []*Command {
	out := deps[:0]
	removed := false
	for _, d := range deps {
		// Remove a single occurrence; a command may legitimately
		// depend on the same target through two relations.
		if d == c && !removed {
			removed = true
			continue
		}
		out = append(out, d)
	}
	return out
}

func cycleError(all []*Command, pending map[*Command]bool) *CycleError {
	var tables []string
	seen := make(map[string]bool)
	for _, c := range all {
		if pending[c] && !seen[c.Table] {
			seen[c.Table] = true
			tables = append(tables, c.Table)
		}
	}
	return &CycleError{Tables: tables}
}
