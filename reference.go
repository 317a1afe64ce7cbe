package loom

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Reference is a lazy placeholder for a related entity that has not
// been loaded. It is either unresolved, carrying only the target role
// and lookup key, or resolved, carrying the materialized value. Once
// resolved it never changes.
//
// The engine never triggers I/O on field access: resolution happens
// only through an explicit Resolve call.
type Reference struct {
	role string
	key  any

	mu       sync.RWMutex
	group    singleflight.Group
	value    any
	resolved bool
}

// NewReference returns an unresolved reference to the entity of the
// given role identified by key.
func NewReference(role string, key any) *Reference {
	return &Reference{role: role, key: key}
}

// ResolvedReference returns a reference already carrying its value.
func ResolvedReference(role string, key, value any) *Reference {
	return &Reference{role: role, key: key, value: value, resolved: true}
}

// Role returns the target role.
func (r *Reference) Role() string { return r.role }

// Key returns the lookup key.
func (r *Reference) Key() any { return r.key }

// Value returns the materialized value and whether the reference has
// been resolved.
func (r *Reference) Value() (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.value, r.resolved
}

// Loader fetches the entity a reference points at.
type Loader func(ctx context.Context, role string, key any) (any, error)

// Resolve materializes the reference through the loader. It is
// idempotent: once resolved, the stored value is returned without
// calling the loader again, and concurrent resolutions of the same
// reference run the loader at most once.
func (r *Reference) Resolve(ctx context.Context, load Loader) (any, error) {
	r.mu.RLock()
	if r.resolved {
		defer r.mu.RUnlock()
		return r.value, nil
	}
	r.mu.RUnlock()
	v, err, _ := r.group.Do("resolve", func() (any, error) {
		r.mu.RLock()
		if r.resolved {
			defer r.mu.RUnlock()
			return r.value, nil
		}
		r.mu.RUnlock()
		v, err := load(ctx, r.role, r.key)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.value = v
		r.resolved = true
		r.mu.Unlock()
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}
