package sql

import (
	"strconv"
	"strings"

	"github.com/syssam/loom/dialect"
)

// Querier is implemented by all statement builders.
type Querier interface {
	// Query returns the query representation of the element
	// and its arguments (if any).
	Query() (string, []any)
}

// builder holds the shared state of all statement builders: the
// dialect, the accumulated SQL text and the bound arguments.
type builder struct {
	sb      strings.Builder
	dialect string
	args    []any
}

// quote quotes the given identifier with the dialect's quote character.
func (b *builder) quote(ident string) string {
	q := `"`
	if b.dialect == dialect.MySQL {
		q = "`"
	}
	return q + ident + q
}

// arg appends the value to the bound arguments and returns its
// placeholder. Postgres uses ordinal placeholders, all other dialects
// use the question mark.
func (b *builder) arg(v any) string {
	b.args = append(b.args, v)
	if b.dialect == dialect.Postgres {
		return "$" + strconv.Itoa(len(b.args))
	}
	return "?"
}

// whereEq writes a conjunction of column = value pairs. Columns and
// values are parallel slices so composite keys keep their order.
func (b *builder) whereEq(cols []string, vals []any) {
	b.sb.WriteString(" WHERE ")
	for i, c := range cols {
		if i > 0 {
			b.sb.WriteString(" AND ")
		}
		b.sb.WriteString(b.quote(c))
		b.sb.WriteString(" = ")
		b.sb.WriteString(b.arg(vals[i]))
	}
}

// InsertBuilder builds an INSERT statement.
type InsertBuilder struct {
	builder
	table     string
	columns   []string
	values    []any
	returning []string
}

// Insert returns an InsertBuilder for the given table.
func Insert(dialect, table string) *InsertBuilder {
	b := &InsertBuilder{table: table}
	b.dialect = dialect
	return b
}

// Set appends a column and its value to the statement.
func (i *InsertBuilder) Set(column string, v any) *InsertBuilder {
	i.columns = append(i.columns, column)
	i.values = append(i.values, v)
	return i
}

// Returning adds a RETURNING clause. Only effective on Postgres;
// other dialects report generated keys through sql.Result.
func (i *InsertBuilder) Returning(columns ...string) *InsertBuilder {
	i.returning = columns
	return i
}

// Query returns the INSERT statement and its arguments.
func (i *InsertBuilder) Query() (string, []any) {
	i.sb.WriteString("INSERT INTO ")
	i.sb.WriteString(i.quote(i.table))
	if len(i.columns) == 0 {
		i.sb.WriteString(" DEFAULT VALUES")
	} else {
		i.sb.WriteString(" (")
		for j, c := range i.columns {
			if j > 0 {
				i.sb.WriteString(", ")
			}
			i.sb.WriteString(i.quote(c))
		}
		i.sb.WriteString(") VALUES (")
		for j, v := range i.values {
			if j > 0 {
				i.sb.WriteString(", ")
			}
			i.sb.WriteString(i.arg(v))
		}
		i.sb.WriteString(")")
	}
	if len(i.returning) > 0 && i.dialect == dialect.Postgres {
		i.sb.WriteString(" RETURNING ")
		for j, c := range i.returning {
			if j > 0 {
				i.sb.WriteString(", ")
			}
			i.sb.WriteString(i.quote(c))
		}
	}
	return i.sb.String(), i.args
}

// UpdateBuilder builds an UPDATE statement.
type UpdateBuilder struct {
	builder
	table     string
	columns   []string
	values    []any
	whereCols []string
	whereVals []any
}

// Update returns an UpdateBuilder for the given table.
func Update(dialect, table string) *UpdateBuilder {
	b := &UpdateBuilder{table: table}
	b.dialect = dialect
	return b
}

// Set appends a column assignment to the statement.
func (u *UpdateBuilder) Set(column string, v any) *UpdateBuilder {
	u.columns = append(u.columns, column)
	u.values = append(u.values, v)
	return u
}

// Where restricts the update to rows matching all column = value pairs.
func (u *UpdateBuilder) Where(columns []string, values []any) *UpdateBuilder {
	u.whereCols = columns
	u.whereVals = values
	return u
}

// Query returns the UPDATE statement and its arguments.
func (u *UpdateBuilder) Query() (string, []any) {
	u.sb.WriteString("UPDATE ")
	u.sb.WriteString(u.quote(u.table))
	u.sb.WriteString(" SET ")
	for j, c := range u.columns {
		if j > 0 {
			u.sb.WriteString(", ")
		}
		u.sb.WriteString(u.quote(c))
		u.sb.WriteString(" = ")
		u.sb.WriteString(u.arg(u.values[j]))
	}
	if len(u.whereCols) > 0 {
		u.whereEq(u.whereCols, u.whereVals)
	}
	return u.sb.String(), u.args
}

// DeleteBuilder builds a DELETE statement.
type DeleteBuilder struct {
	builder
	table     string
	whereCols []string
	whereVals []any
}

// Delete returns a DeleteBuilder for the given table.
func Delete(dialect, table string) *DeleteBuilder {
	b := &DeleteBuilder{table: table}
	b.dialect = dialect
	return b
}

// Where restricts the delete to rows matching all column = value pairs.
func (d *DeleteBuilder) Where(columns []string, values []any) *DeleteBuilder {
	d.whereCols = columns
	d.whereVals = values
	return d
}

// Query returns the DELETE statement and its arguments.
func (d *DeleteBuilder) Query() (string, []any) {
	d.sb.WriteString("DELETE FROM ")
	d.sb.WriteString(d.quote(d.table))
	if len(d.whereCols) > 0 {
		d.whereEq(d.whereCols, d.whereVals)
	}
	return d.sb.String(), d.args
}

// SelectBuilder builds a SELECT statement restricted to an equality
// predicate. The persistence engine only ever selects by key columns;
// query building beyond that is out of its scope.
type SelectBuilder struct {
	builder
	table     string
	columns   []string
	whereCols []string
	whereVals []any
}

// Select returns a SelectBuilder for the given table and columns.
func Select(dialect, table string, columns ...string) *SelectBuilder {
	b := &SelectBuilder{table: table, columns: columns}
	b.dialect = dialect
	return b
}

// Where restricts the select to rows matching all column = value pairs.
func (s *SelectBuilder) Where(columns []string, values []any) *SelectBuilder {
	s.whereCols = columns
	s.whereVals = values
	return s
}

// Query returns the SELECT statement and its arguments.
func (s *SelectBuilder) Query() (string, []any) {
	s.sb.WriteString("SELECT ")
	for j, c := range s.columns {
		if j > 0 {
			s.sb.WriteString(", ")
		}
		s.sb.WriteString(s.quote(c))
	}
	s.sb.WriteString(" FROM ")
	s.sb.WriteString(s.quote(s.table))
	if len(s.whereCols) > 0 {
		s.whereEq(s.whereCols, s.whereVals)
	}
	return s.sb.String(), s.args
}
