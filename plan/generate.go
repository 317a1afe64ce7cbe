package plan

import (
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/syssam/loom/schema"
)

// Insert builds the insert command for a new entity. values is keyed
// by column name; columns absent from it are omitted so the database
// can apply its defaults. A generated primary key the caller did not
// supply is omitted and reported back through Resolved
// (auto-increment) or generated client-side (UUID); a caller-supplied
// key is written as given.
func Insert(def *schema.Definition, values map[string]any, ref any) (*Command, error) {
	c := &Command{
		Kind:   KindInsert,
		Def:    def,
		Table:  def.TableName(),
		PKCols: def.PrimaryKey,
		Ref:    ref,
	}
	for i := range def.Columns {
		col := &def.Columns[i]
		v, ok := values[col.Name]
		if def.IsPrimaryKey(col.Name) {
			switch col.Generated {
			case schema.GenAutoIncrement:
				if !ok || v == nil {
					c.Returning = col.Name
					continue
				}
			case schema.GenUUID:
				if !ok || v == nil {
					v, ok = uuid.New(), true
				}
			}
		}
		if !ok {
			continue
		}
		cast, err := castValue(col, v)
		if err != nil {
			return nil, err
		}
		c.Assigns = append(c.Assigns, Assign{Column: col.Name, Value: cast})
	}
	for _, pk := range def.PrimaryKey {
		c.PKVals = append(c.PKVals, assignValue(c.Assigns, pk))
	}
	return c, nil
}

// Diff compares current column values against the committed snapshot
// and builds an update command carrying only the changed columns.
// It returns nil when nothing changed: saving an untouched entity is a
// no-op. Primary-key columns are never part of the update set.
func Diff(def *schema.Definition, snapshot, values map[string]any, ref any) (*Command, error) {
	c := &Command{
		Kind:   KindUpdate,
		Def:    def,
		Table:  def.TableName(),
		PKCols: def.PrimaryKey,
		Ref:    ref,
	}
	for i := range def.Columns {
		col := &def.Columns[i]
		if def.IsPrimaryKey(col.Name) {
			continue
		}
		v, ok := values[col.Name]
		if !ok {
			// Column not produced by the mapper; nothing to compare.
			continue
		}
		cast, err := castValue(col, v)
		if err != nil {
			return nil, err
		}
		if _, lateBound := cast.(*ColumnRef); !lateBound {
			prev, had := snapshot[col.Name]
			if had && valueEqual(prev, cast) {
				continue
			}
			if !had && cast == nil {
				continue
			}
		}
		c.Assigns = append(c.Assigns, Assign{Column: col.Name, Value: cast})
	}
	if len(c.Assigns) == 0 {
		return nil, nil
	}
	for _, pk := range def.PrimaryKey {
		v, ok := snapshot[pk]
		if !ok {
			return nil, fmt.Errorf("plan: %s: snapshot is missing primary key column %q", def.Role, pk)
		}
		c.PKVals = append(c.PKVals, v)
	}
	return c, nil
}

// Delete builds the delete command for a managed entity, keyed by the
// primary key recorded in its snapshot.
func Delete(def *schema.Definition, snapshot map[string]any, ref any) (*Command, error) {
	c := &Command{
		Kind:   KindDelete,
		Def:    def,
		Table:  def.TableName(),
		PKCols: def.PrimaryKey,
		Ref:    ref,
	}
	for _, pk := range def.PrimaryKey {
		v, ok := snapshot[pk]
		if !ok {
			return nil, fmt.Errorf("plan: %s: snapshot is missing primary key column %q", def.Role, pk)
		}
		c.PKVals = append(c.PKVals, v)
	}
	return c, nil
}

// SetNull builds the update that nulls a dependent's foreign key
// before its parent row is deleted.
func SetNull(def *schema.Definition, column string, snapshot map[string]any, ref any) (*Command, error) {
	c := &Command{
		Kind:    KindUpdate,
		Def:     def,
		Table:   def.TableName(),
		PKCols:  def.PrimaryKey,
		Assigns: []Assign{{Column: column, Value: nil}},
		Ref:     ref,
	}
	for _, pk := range def.PrimaryKey {
		v, ok := snapshot[pk]
		if !ok {
			return nil, fmt.Errorf("plan: %s: snapshot is missing primary key column %q", def.Role, pk)
		}
		c.PKVals = append(c.PKVals, v)
	}
	return c, nil
}

// Pivot builds the insert command for one many-to-many link row.
// source and target may be concrete keys or *ColumnRef values pointing
// at the link's endpoint inserts.
func Pivot(through *schema.Through, source, target any) *Command {
	return &Command{
		Kind:  KindInsert,
		Table: through.Table,
		Assigns: []Assign{
			{Column: through.SourceColumn, Value: source},
			{Column: through.TargetColumn, Value: target},
		},
	}
}

// castValue applies the column typecast, passing late-bound references
// through untouched.
func castValue(col *schema.Column, v any) (any, error) {
	if _, ok := v.(*ColumnRef); ok {
		return v, nil
	}
	return schema.Cast(col.Cast, v)
}

// assignValue returns the assigned value of a column, or nil when the
// column is not part of the assign list.
func assignValue(assigns []Assign, column string) any {
	for _, a := range assigns {
		if a.Column == column {
			return a.Value
		}
	}
	return nil
}

// valueEqual compares a snapshot value with a freshly extracted one.
// Numeric values compare across widths so an int written by the
// application matches the int64 read back from the driver.
func valueEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ai, aok := asInt64(a); aok {
		bi, bok := asInt64(b)
		return bok && ai == bi
	}
	if af, aok := asFloat64(a); aok {
		bf, bok := asFloat64(b)
		return bok && af == bf
	}
	switch av := a.(type) {
	case string:
		switch bv := b.(type) {
		case string:
			return av == bv
		case []byte:
			return av == string(bv)
		}
	case []byte:
		switch bv := b.(type) {
		case string:
			return string(av) == bv
		case []byte:
			return string(av) == string(bv)
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Equal(bv)
		}
	}
	return reflect.DeepEqual(a, b)
}

func asInt64(v any) (int64, bool) {
	switch v := v.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch v := v.(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}
