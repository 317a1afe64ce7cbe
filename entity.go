package loom

import (
	"github.com/syssam/loom/schema"
)

// Entity is implemented by anything the engine can persist. The role
// is the key into the schema provider; the engine never inspects the
// Go type beyond it.
type Entity interface {
	Role() string
}

// Record is the default entity container: a field map with a fixed,
// schema-derived key set. Unknown fields are rejected at Set time
// instead of becoming silent dynamic properties.
//
// A field may hold a plain value, a related Entity, a slice of related
// entities, or a *Reference.
type Record struct {
	def    *schema.Definition
	values map[string]any
}

// NewRecord returns an empty record for the given role definition.
func NewRecord(def *schema.Definition) *Record {
	return &Record{def: def, values: make(map[string]any)}
}

// Role implements the Entity interface.
func (r *Record) Role() string { return r.def.Role }

// Definition returns the role definition the record is bound to.
func (r *Record) Definition() *schema.Definition { return r.def }

// Set assigns a field value. The field must be a mapped column field
// or a declared relation name.
func (r *Record) Set(field string, v any) error {
	if !r.knows(field) {
		return NewUnmappedFieldError(r.def.Role, field)
	}
	r.values[field] = v
	return nil
}

// MustSet is like Set but panics on unknown fields. Intended for
// schema-derived code and tests where the field set is static.
func (r *Record) MustSet(field string, v any) *Record {
	if err := r.Set(field, v); err != nil {
		panic(err)
	}
	return r
}

// Get returns a field value.
func (r *Record) Get(field string) (any, bool) {
	v, ok := r.values[field]
	return v, ok
}

// Value returns a field value, or nil when unset.
func (r *Record) Value(field string) any {
	return r.values[field]
}

// Values returns a copy of all set fields.
func (r *Record) Values() map[string]any {
	out := make(map[string]any, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// Unset removes a field value.
func (r *Record) Unset(field string) {
	delete(r.values, field)
}

func (r *Record) knows(field string) bool {
	if _, ok := r.def.ColumnByField(field); ok {
		return true
	}
	_, ok := r.def.Relation(field)
	return ok
}
