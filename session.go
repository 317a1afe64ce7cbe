package loom

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/syssam/loom/dialect"
	sqldialect "github.com/syssam/loom/dialect/sql"
	"github.com/syssam/loom/graph"
	"github.com/syssam/loom/schema"
)

// Session is the explicit context for all entity operations. It owns
// the heap (identity map), the schema provider, the driver and the
// per-role mappers. Distinct sessions are fully independent and may be
// used concurrently without coordination.
type Session struct {
	drv      dialect.Driver
	provider schema.Provider
	mappers  map[string]Mapper
	heap     *graph.Heap
	log      *slog.Logger
}

// Option configures a Session.
type Option func(*Session)

// Driver sets the database driver.
func Driver(d dialect.Driver) Option {
	return func(s *Session) { s.drv = d }
}

// Schema sets the schema provider.
func Schema(p schema.Provider) Option {
	return func(s *Session) { s.provider = p }
}

// WithMapper registers a custom mapper for a role. Roles without a
// registered mapper fall back to the RecordMapper.
func WithMapper(role string, m Mapper) Option {
	return func(s *Session) { s.mappers[role] = m }
}

// WithLogger sets the logger used for run lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// NewSession returns a session over the given driver and schema.
func NewSession(opts ...Option) (*Session, error) {
	s := &Session{
		mappers: make(map[string]Mapper),
		heap:    graph.New(),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.drv == nil {
		return nil, errors.New("loom: session requires a driver")
	}
	if s.provider == nil {
		return nil, errors.New("loom: session requires a schema provider")
	}
	return s, nil
}

// Heap returns the session's identity map.
func (s *Session) Heap() *graph.Heap { return s.heap }

// Describe returns the schema definition of a role.
func (s *Session) Describe(role string) (*schema.Definition, error) {
	def, err := s.provider.Describe(role)
	if err != nil {
		return nil, NewUnmappedEntityError(role, err)
	}
	return def, nil
}

// Mapper returns the mapper serving the given role.
func (s *Session) Mapper(role string) (Mapper, error) {
	if m, ok := s.mappers[role]; ok {
		return m, nil
	}
	def, err := s.Describe(role)
	if err != nil {
		return nil, err
	}
	return NewRecordMapper(def), nil
}

// NewRecord returns an empty record for the given role.
func (s *Session) NewRecord(role string) (*Record, error) {
	def, err := s.Describe(role)
	if err != nil {
		return nil, err
	}
	return NewRecord(def), nil
}

// Attach starts tracking a new (never persisted) entity and returns
// its node. Attaching a tracked entity returns the existing node.
func (s *Session) Attach(entity Entity) (*graph.Node, error) {
	if _, err := s.Describe(entity.Role()); err != nil {
		return nil, err
	}
	return s.heap.Attach(entity, entity.Role(), graph.NewState(graph.StatusNew, nil)), nil
}

// AttachManaged starts tracking an entity that is known to be
// persisted, with the given committed snapshot.
func (s *Session) AttachManaged(entity Entity, snapshot map[string]any) (*graph.Node, error) {
	if _, err := s.Describe(entity.Role()); err != nil {
		return nil, err
	}
	return s.heap.Attach(entity, entity.Role(), graph.NewState(graph.StatusManaged, snapshot)), nil
}

// Detach stops tracking the entity without touching the database.
func (s *Session) Detach(entity Entity) {
	s.heap.Detach(entity)
}

// Unit returns a fresh unit of work bound to this session.
func (s *Session) Unit() *Unit {
	return newUnit(s)
}

// Find loads the entity of the given role identified by its primary
// key, hydrates it through the role's mapper and attaches it to the
// heap as managed. Composite-key roles are not supported by Find.
func (s *Session) Find(ctx context.Context, role string, id any) (any, error) {
	def, err := s.Describe(role)
	if err != nil {
		return nil, err
	}
	if len(def.PrimaryKey) != 1 {
		return nil, fmt.Errorf("loom: find %s: composite primary key", role)
	}
	m, err := s.Mapper(role)
	if err != nil {
		return nil, err
	}
	cols := make([]string, len(def.Columns))
	for i := range def.Columns {
		cols[i] = def.Columns[i].Name
	}
	b := sqldialect.Select(s.drv.Dialect(), def.TableName(), cols...)
	b.Where(def.PrimaryKey, []any{id})
	query, args := b.Query()
	rows := &sqldialect.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return nil, &AdapterError{Op: "query " + def.TableName(), Err: err}
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, &AdapterError{Op: "query " + def.TableName(), Err: err}
		}
		return nil, &NotFoundError{Role: role, ID: id}
	}
	row, err := scanRow(rows, cols)
	if err != nil {
		return nil, &AdapterError{Op: "scan " + def.TableName(), Err: err}
	}
	entity, err := m.Init()
	if err != nil {
		return nil, err
	}
	entity, err = m.Hydrate(entity, row)
	if err != nil {
		return nil, err
	}
	s.heap.Attach(entity, role, graph.NewState(graph.StatusManaged, row))
	s.log.DebugContext(ctx, "loom: found entity", "role", role, "id", id)
	return entity, nil
}

// Resolve materializes a reference using this session's Find as the
// loader.
func (s *Session) Resolve(ctx context.Context, ref *Reference) (any, error) {
	return ref.Resolve(ctx, func(ctx context.Context, role string, key any) (any, error) {
		return s.Find(ctx, role, key)
	})
}

// scanRow reads the current row into a column-keyed map.
func scanRow(rows *sqldialect.Rows, cols []string) (map[string]any, error) {
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	row := make(map[string]any, len(cols))
	for i, c := range cols {
		v := vals[i]
		// Drivers reuse []byte buffers between rows; copy them through
		// string so the snapshot stays stable.
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		row[c] = v
	}
	return row, nil
}
