package loom

import (
	"fmt"

	"github.com/syssam/loom/schema"
)

// Mapper converts between raw persisted rows and entity instances.
// One mapper serves one role; any implementation satisfying the
// contract is substitutable and selected per role on the session.
type Mapper interface {
	// Init constructs an empty entity instance for the mapper's role.
	Init() (any, error)
	// Hydrate writes raw row values (keyed by column name) into the
	// entity and returns it.
	Hydrate(entity any, row map[string]any) (any, error)
	// Extract returns all entity field values keyed by field name,
	// including relation fields.
	Extract(entity any) (map[string]any, error)
	// FetchFields returns the subset of Extract limited to fields that
	// map to columns.
	FetchFields(entity any) (map[string]any, error)
}

// RecordMapper is the default Mapper implementation, operating on
// *Record containers.
type RecordMapper struct {
	def *schema.Definition
}

// NewRecordMapper returns a mapper for the given role definition.
func NewRecordMapper(def *schema.Definition) *RecordMapper {
	return &RecordMapper{def: def}
}

// Init implements the Mapper interface.
func (m *RecordMapper) Init() (any, error) {
	return NewRecord(m.def), nil
}

// Hydrate implements the Mapper interface. Row keys are column names;
// columns unknown to the definition are ignored, matching how a star
// select may carry columns the mapping does not cover.
func (m *RecordMapper) Hydrate(entity any, row map[string]any) (any, error) {
	r, ok := entity.(*Record)
	if !ok {
		return nil, fmt.Errorf("loom: record mapper for %s: unexpected entity type %T", m.def.Role, entity)
	}
	for col, v := range row {
		c, ok := m.def.Column(col)
		if !ok {
			continue
		}
		r.values[c.FieldName()] = v
	}
	return r, nil
}

// Extract implements the Mapper interface.
func (m *RecordMapper) Extract(entity any) (map[string]any, error) {
	r, ok := entity.(*Record)
	if !ok {
		return nil, fmt.Errorf("loom: record mapper for %s: unexpected entity type %T", m.def.Role, entity)
	}
	return r.Values(), nil
}

// FetchFields implements the Mapper interface.
func (m *RecordMapper) FetchFields(entity any) (map[string]any, error) {
	r, ok := entity.(*Record)
	if !ok {
		return nil, fmt.Errorf("loom: record mapper for %s: unexpected entity type %T", m.def.Role, entity)
	}
	out := make(map[string]any, len(r.values))
	for field, v := range r.values {
		if _, ok := m.def.ColumnByField(field); ok {
			out[field] = v
		}
	}
	return out, nil
}
