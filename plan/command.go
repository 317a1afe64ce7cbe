// Package plan turns tracked entity changes into an ordered sequence
// of database commands: it diffs column values against committed
// snapshots, schedules the resulting commands in dependency-safe
// order, and executes them one by one inside a transaction.
//
// The package operates on plain column/value data and schema
// definitions only; it knows nothing about entities, mappers or the
// identity map.
package plan

import (
	"fmt"
	"strings"

	"github.com/syssam/loom/schema"
)

// Kind is the command's operation type.
type Kind uint8

const (
	// KindInsert inserts one row.
	KindInsert Kind = iota
	// KindUpdate updates the changed columns of one row.
	KindUpdate
	// KindDelete deletes one row by primary key.
	KindDelete
)

func (k Kind) String() string {
	switch k {
	case KindInsert:
		return "insert"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Assign is one column/value pair of an insert or update. The value
// may be a *ColumnRef when it depends on the outcome of another
// command in the same plan.
type Assign struct {
	Column string
	Value  any
}

// Dep declares that the owning command must execute after On.
// Deferrable deps carry the foreign-key columns that may be split out
// of an insert into a later update to break a relation cycle.
type Dep struct {
	On         *Command
	Deferrable bool
	Columns    []string
}

// ColumnRef is a late-bound value: it resolves to the value the
// referenced command committed for the given column. Used for foreign
// keys pointing at rows whose primary key the database generates.
type ColumnRef struct {
	Cmd    *Command
	Column string
}

// Command is one atomic database operation. Commands are created by
// the generator, ordered by the scheduler and discarded after the run.
type Command struct {
	Kind      Kind
	Def       *schema.Definition // nil for pivot-table commands
	Table     string
	Assigns   []Assign
	PKCols    []string
	PKVals    []any  // parallel to PKCols; may contain *ColumnRef
	Returning string // generated-key column reported by the database
	Ref       any    // opaque owner tag, untouched by this package
	Deps      []Dep
	// Resolved holds the column values the command actually wrote,
	// including generated keys. Filled during execution.
	Resolved map[string]any

	seq int
}

// DependsOn appends a dependency.
func (c *Command) DependsOn(on *Command, deferrable bool, columns ...string) {
	c.Deps = append(c.Deps, Dep{On: on, Deferrable: deferrable, Columns: columns})
}

// SetAssign sets a column value, replacing an existing assign for the
// same column.
func (c *Command) SetAssign(column string, v any) {
	for i := range c.Assigns {
		if c.Assigns[i].Column == column {
			c.Assigns[i].Value = v
			return
		}
	}
	c.Assigns = append(c.Assigns, Assign{Column: column, Value: v})
}

// String returns a compact human-readable form, used in logs and tests.
func (c *Command) String() string {
	var sb strings.Builder
	sb.WriteString(c.Kind.String())
	sb.WriteString(" ")
	sb.WriteString(c.Table)
	if len(c.Assigns) > 0 {
		sb.WriteString(" (")
		for i, a := range c.Assigns {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(a.Column)
		}
		sb.WriteString(")")
	}
	return sb.String()
}

// CycleError is returned by Schedule when the command graph contains a
// cycle that no deferred-update pass can break, e.g. a mutual
// non-nullable foreign-key cycle.
type CycleError struct {
	Tables []string
}

func (e *CycleError) Error() string {
	return "plan: dependency cycle involving " + strings.Join(e.Tables, ", ")
}
