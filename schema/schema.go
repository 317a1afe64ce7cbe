// Package schema defines the mapping metadata consumed by the loom
// persistence engine: which table a role binds to, how entity fields
// map to columns, and how roles relate to each other.
//
// A role is the logical entity type name. The engine never inspects Go
// types; everything it knows about an entity comes from the role's
// Definition.
package schema

import (
	"errors"
	"fmt"

	"github.com/go-openapi/inflect"
)

// ErrRoleNotFound is returned by a Provider when a role has no definition.
var ErrRoleNotFound = errors.New("schema: role not defined")

// Provider supplies mapping metadata per role. It must be queryable
// before any persist or delete call and is treated as immutable for
// the lifetime of a session.
type Provider interface {
	Describe(role string) (*Definition, error)
}

// Rel is a relation cardinality/direction pair.
type Rel uint8

// Relation types.
const (
	O2O Rel = iota // one-to-one
	O2M            // one-to-many
	M2O            // many-to-one
	M2M            // many-to-many
)

func (r Rel) String() string {
	switch r {
	case O2O:
		return "O2O"
	case O2M:
		return "O2M"
	case M2O:
		return "M2O"
	case M2M:
		return "M2M"
	default:
		return fmt.Sprintf("Rel(%d)", r)
	}
}

// Cascade controls how persist and delete operations propagate across
// a relation.
type Cascade uint8

// Cascade policies, ordered from least to most permissive. When an
// entity is reachable through relations with different policies, the
// most permissive one wins.
const (
	// CascadeNone propagates nothing. Related entities must already be
	// managed or scheduled, otherwise the run fails.
	CascadeNone Cascade = iota
	// CascadeSetNull propagates deletes by nulling the dependent's
	// foreign key instead of deleting the row.
	CascadeSetNull
	// CascadeDelete propagates deletes to dependents, but not persists.
	CascadeDelete
	// CascadeAll propagates both persists and deletes.
	CascadeAll
)

func (c Cascade) String() string {
	switch c {
	case CascadeNone:
		return "none"
	case CascadeSetNull:
		return "set_null"
	case CascadeDelete:
		return "delete"
	case CascadeAll:
		return "all"
	default:
		return fmt.Sprintf("Cascade(%d)", c)
	}
}

// Persists reports whether the policy auto-attaches and schedules new
// related entities on persist.
func (c Cascade) Persists() bool { return c == CascadeAll }

// Deletes reports whether the policy propagates deletes to dependents.
func (c Cascade) Deletes() bool { return c == CascadeAll || c == CascadeDelete }

// MaxCascade returns the more permissive of the two policies.
func MaxCascade(a, b Cascade) Cascade {
	if b > a {
		return b
	}
	return a
}

// Generated declares how a primary-key value is produced.
type Generated uint8

const (
	// GenNone means the application supplies the key value.
	GenNone Generated = iota
	// GenAutoIncrement means the database generates the key and
	// reports it back on insert.
	GenAutoIncrement
	// GenUUID means the engine generates a UUID client-side before insert.
	GenUUID
)

// Column maps one entity field to a table column.
type Column struct {
	// Name is the column name.
	Name string
	// Field is the entity field name. Defaults to Name.
	Field string
	// Nullable reports whether the column accepts NULL.
	Nullable bool
	// Generated declares key generation for primary-key columns.
	Generated Generated
	// Cast names a typecast applied when writing the column. See Casts.
	Cast string
}

// Through describes the pivot table of a many-to-many relation.
type Through struct {
	Table        string
	SourceColumn string // FK column referencing this side
	TargetColumn string // FK column referencing the target side
}

// Relation declares an edge from one role to another.
type Relation struct {
	// Name is the entity field holding the related value, collection
	// or Reference.
	Name string
	// Rel is the relation type.
	Rel Rel
	// Target is the related role.
	Target string
	// Owning reports whether this side holds the foreign-key column.
	// The owning side must be persisted after the side it references.
	Owning bool
	// Column is the foreign-key column: on this table when Owning,
	// on the target table otherwise. Unused for M2M.
	Column string
	// TargetColumn is the referenced column. Defaults to the target
	// role's primary key.
	TargetColumn string
	// Nullable reports whether the foreign-key column accepts NULL.
	// A nullable FK is what makes a relation cycle breakable.
	Nullable bool
	// Cascade is the propagation policy.
	Cascade Cascade
	// Through holds the pivot table for M2M relations.
	Through *Through
}

// Definition is the full mapping of one role.
type Definition struct {
	Role       string
	Database   string // optional database/schema qualifier
	Table      string // defaults to the pluralized snake-case role
	Mapper     string // mapper identifier, resolved by the session
	PrimaryKey []string
	Columns    []Column
	Relations  []Relation
}

// TableName returns the bound table, deriving it from the role when
// the definition leaves it empty.
func (d *Definition) TableName() string {
	if d.Table != "" {
		return d.Table
	}
	return inflect.Underscore(inflect.Pluralize(d.Role))
}

// Column returns the column with the given name.
func (d *Definition) Column(name string) (*Column, bool) {
	for i := range d.Columns {
		if d.Columns[i].Name == name {
			return &d.Columns[i], true
		}
	}
	return nil, false
}

// ColumnByField returns the column mapped to the given entity field.
func (d *Definition) ColumnByField(field string) (*Column, bool) {
	for i := range d.Columns {
		if d.Columns[i].FieldName() == field {
			return &d.Columns[i], true
		}
	}
	return nil, false
}

// Relation returns the relation with the given field name.
func (d *Definition) Relation(name string) (*Relation, bool) {
	for i := range d.Relations {
		if d.Relations[i].Name == name {
			return &d.Relations[i], true
		}
	}
	return nil, false
}

// Fields returns the entity field names of all mapped columns.
func (d *Definition) Fields() []string {
	fields := make([]string, len(d.Columns))
	for i := range d.Columns {
		fields[i] = d.Columns[i].FieldName()
	}
	return fields
}

// IsPrimaryKey reports whether the column is part of the primary key.
func (d *Definition) IsPrimaryKey(column string) bool {
	for _, pk := range d.PrimaryKey {
		if pk == column {
			return true
		}
	}
	return false
}

// FieldName returns the entity field the column maps to.
func (c *Column) FieldName() string {
	if c.Field != "" {
		return c.Field
	}
	return c.Name
}

// Registry is the standard in-memory Provider implementation.
type Registry struct {
	defs  map[string]*Definition
	order []string
}

// NewRegistry returns a Registry holding the given definitions.
func NewRegistry(defs ...*Definition) (*Registry, error) {
	r := &Registry{defs: make(map[string]*Definition, len(defs))}
	for _, d := range defs {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a definition to the registry.
func (r *Registry) Register(d *Definition) error {
	if d.Role == "" {
		return errors.New("schema: definition without a role")
	}
	if _, ok := r.defs[d.Role]; ok {
		return fmt.Errorf("schema: role %q already registered", d.Role)
	}
	r.defs[d.Role] = d
	r.order = append(r.order, d.Role)
	return nil
}

// Describe implements the Provider interface.
func (r *Registry) Describe(role string) (*Definition, error) {
	d, ok := r.defs[role]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRoleNotFound, role)
	}
	return d, nil
}

// Roles returns all registered roles in registration order.
func (r *Registry) Roles() []string {
	roles := make([]string, len(r.order))
	copy(roles, r.order)
	return roles
}
