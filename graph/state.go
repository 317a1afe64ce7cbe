package graph

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Status is the persistence status of a tracked entity.
type Status uint8

const (
	// StatusNew marks an entity that was never persisted.
	StatusNew Status = iota
	// StatusManaged marks a persisted entity whose snapshot mirrors the
	// last committed row values.
	StatusManaged
	// StatusDeleted marks an entity whose row was removed. The node is
	// normally detached right after entering this status.
	StatusDeleted
	// StatusScheduled marks an entity held by an in-flight unit of work.
	StatusScheduled
)

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusManaged:
		return "managed"
	case StatusDeleted:
		return "deleted"
	case StatusScheduled:
		return "scheduled"
	default:
		return fmt.Sprintf("Status(%d)", s)
	}
}

// State is the last-known persisted snapshot of one entity plus its
// status tag. The snapshot is keyed by column name. Only the unit of
// work mutates a State, and only on commit.
type State struct {
	status   Status
	prev     Status // status to restore when a scheduled run rolls back
	snapshot map[string]any
}

// NewState returns a State with the given status and a deep copy of
// the snapshot.
func NewState(status Status, snapshot map[string]any) *State {
	return &State{status: status, snapshot: CloneSnapshot(snapshot)}
}

// Status returns the current status tag.
func (s *State) Status() Status { return s.status }

// Snapshot returns the committed column values. Callers must treat the
// returned map as read-only.
func (s *State) Snapshot() map[string]any { return s.snapshot }

// Get returns the committed value of one column.
func (s *State) Get(column string) (any, bool) {
	v, ok := s.snapshot[column]
	return v, ok
}

// schedule tags the state as held by an in-flight run, remembering the
// status to restore on rollback.
func (s *State) schedule() {
	s.prev = s.status
	s.status = StatusScheduled
}

// restore reverts a scheduled state to its pre-run status.
func (s *State) restore() {
	if s.status == StatusScheduled {
		s.status = s.prev
	}
}

// commit replaces the snapshot with a deep copy of values merged over
// the previous snapshot and sets the final status.
func (s *State) commit(status Status, values map[string]any) {
	merged := CloneSnapshot(s.snapshot)
	if merged == nil {
		merged = make(map[string]any, len(values))
	}
	for k, v := range CloneSnapshot(values) {
		merged[k] = v
	}
	s.snapshot = merged
	s.status = status
	s.prev = status
}

// CloneSnapshot deep-copies a snapshot through a msgpack round-trip so
// committed state never aliases live entity maps or slices. Values
// that msgpack cannot encode fall back to a shallow copy.
func CloneSnapshot(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	data, err := msgpack.Marshal(m)
	if err != nil {
		return shallowCopy(m)
	}
	var out map[string]any
	if err := msgpack.Unmarshal(data, &out); err != nil {
		return shallowCopy(m)
	}
	// Keep original scalar values; msgpack widens or narrows numeric
	// types on decode and scalar identity matters for diffing. Scalars
	// are immutable so no aliasing is introduced.
	for k, v := range m {
		switch v.(type) {
		case int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64, time.Time:
			out[k] = v
		}
	}
	return out
}

func shallowCopy(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
