package loom

// Result is the outcome of one unit-of-work run. It is the only object
// surfaced to convenience layers: inspect it for the non-throwing
// style, or use Unit.RunE for the error-returning one. Both wrap the
// same outcome.
type Result struct {
	err      error
	entities []any
}

// Ok reports whether the run committed.
func (r *Result) Ok() bool { return r.err == nil }

// Err returns the run's canonical error, or nil after a commit.
func (r *Result) Err() error { return r.err }

// Entities returns the entities affected by the run, in registration
// order. After a rollback it returns nil; nothing was affected.
func (r *Result) Entities() []any {
	if r.err != nil {
		return nil
	}
	return r.entities
}
