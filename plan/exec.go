package plan

import (
	"context"
	"fmt"

	"github.com/syssam/loom/dialect"
	sqldialect "github.com/syssam/loom/dialect/sql"
)

// Execute runs one command on the given connection (normally an open
// transaction) and returns the number of affected rows. Late-bound
// values are resolved against the outcome of earlier commands, and the
// command's Resolved map is filled with the values actually written,
// including any database-generated key.
func Execute(ctx context.Context, conn dialect.ExecQuerier, drv string, c *Command) (int64, error) {
	c.Resolved = make(map[string]any, len(c.Assigns)+len(c.PKCols))
	switch c.Kind {
	case KindInsert:
		return execInsert(ctx, conn, drv, c)
	case KindUpdate:
		return execUpdate(ctx, conn, drv, c)
	case KindDelete:
		return execDelete(ctx, conn, drv, c)
	default:
		return 0, fmt.Errorf("plan: unknown command kind %v", c.Kind)
	}
}

func execInsert(ctx context.Context, conn dialect.ExecQuerier, drv string, c *Command) (int64, error) {
	b := sqldialect.Insert(drv, c.Table)
	for _, a := range c.Assigns {
		v := resolveValue(a.Value)
		b.Set(a.Column, v)
		c.Resolved[a.Column] = v
	}
	if c.Returning != "" && drv == dialect.Postgres {
		b.Returning(c.Returning)
		query, args := b.Query()
		rows := &sqldialect.Rows{}
		if err := conn.Query(ctx, query, args, rows); err != nil {
			return 0, err
		}
		defer rows.Close()
		if !rows.Next() {
			return 0, fmt.Errorf("plan: insert into %s returned no generated key", c.Table)
		}
		var id any
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
		c.Resolved[c.Returning] = id
		return 1, rows.Err()
	}
	query, args := b.Query()
	var res sqldialect.Result
	if err := conn.Exec(ctx, query, args, &res); err != nil {
		return 0, err
	}
	if c.Returning != "" {
		id, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("plan: insert into %s: generated key: %w", c.Table, err)
		}
		c.Resolved[c.Returning] = id
	}
	return 1, nil
}

func execUpdate(ctx context.Context, conn dialect.ExecQuerier, drv string, c *Command) (int64, error) {
	b := sqldialect.Update(drv, c.Table)
	for _, a := range c.Assigns {
		v := resolveValue(a.Value)
		b.Set(a.Column, v)
		c.Resolved[a.Column] = v
	}
	pkVals := c.resolvePK()
	b.Where(c.PKCols, pkVals)
	query, args := b.Query()
	var res sqldialect.Result
	if err := conn.Exec(ctx, query, args, &res); err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func execDelete(ctx context.Context, conn dialect.ExecQuerier, drv string, c *Command) (int64, error) {
	b := sqldialect.Delete(drv, c.Table)
	pkVals := c.resolvePK()
	b.Where(c.PKCols, pkVals)
	query, args := b.Query()
	var res sqldialect.Result
	if err := conn.Exec(ctx, query, args, &res); err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// resolvePK resolves the key values and records them in Resolved so
// dependent commands can reference this row's key.
func (c *Command) resolvePK() []any {
	vals := make([]any, len(c.PKVals))
	for i, v := range c.PKVals {
		vals[i] = resolveValue(v)
		if vals[i] != nil {
			c.Resolved[c.PKCols[i]] = vals[i]
		}
	}
	return vals
}

func resolveValue(v any) any {
	if ref, ok := v.(*ColumnRef); ok {
		return ref.Cmd.Resolved[ref.Column]
	}
	return v
}
