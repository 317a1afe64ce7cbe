package loom

import (
	"errors"
	"fmt"

	"github.com/syssam/loom/plan"
)

// Standard sentinel errors for common failure modes.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("loom: entity not found")

	// ErrUnitClosed is returned when registering entities on a unit of
	// work that already started or finished running.
	ErrUnitClosed = errors.New("loom: unit of work already ran")
)

// UnmappedEntityError is returned when an entity's role has no schema
// definition, or a field does not map to any of the role's columns or
// relations.
type UnmappedEntityError struct {
	Role  string
	Field string // empty when the whole role is unknown
	wrap  error
}

// Error returns the error string.
func (e *UnmappedEntityError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("loom: field %q is not mapped for role %q", e.Field, e.Role)
	}
	return fmt.Sprintf("loom: role %q is not mapped", e.Role)
}

// Unwrap returns the underlying error.
func (e *UnmappedEntityError) Unwrap() error { return e.wrap }

// NewUnmappedEntityError returns a new UnmappedEntityError for a role.
func NewUnmappedEntityError(role string, wrap error) *UnmappedEntityError {
	return &UnmappedEntityError{Role: role, wrap: wrap}
}

// NewUnmappedFieldError returns a new UnmappedEntityError for a field.
func NewUnmappedFieldError(role, field string) *UnmappedEntityError {
	return &UnmappedEntityError{Role: role, Field: field}
}

// IsUnmappedEntity returns true if the error reports an unmapped role
// or field.
func IsUnmappedEntity(err error) bool {
	var e *UnmappedEntityError
	return errors.As(err, &e)
}

// UnscheduledDependencyError is returned when a relation requires an
// already-persisted entity but points at a new, unmanaged one and the
// cascade policy forbids auto-attaching it.
type UnscheduledDependencyError struct {
	Role     string
	Relation string
	Target   string
}

// Error returns the error string.
func (e *UnscheduledDependencyError) Error() string {
	return fmt.Sprintf("loom: relation %s.%s points at an unscheduled %s entity and cascade is disabled", e.Role, e.Relation, e.Target)
}

// IsUnscheduledDependency returns true if the error is an UnscheduledDependencyError.
func IsUnscheduledDependency(err error) bool {
	var e *UnscheduledDependencyError
	return errors.As(err, &e)
}

// DependencyCycleError reports an irreducible foreign-key cycle in the
// execution plan.
type DependencyCycleError = plan.CycleError

// IsDependencyCycle returns true if the error is a DependencyCycleError.
func IsDependencyCycle(err error) bool {
	var e *DependencyCycleError
	return errors.As(err, &e)
}

// ConcurrentModificationError is returned when an entity is already
// scheduled in another in-flight unit of work on the same heap.
type ConcurrentModificationError struct {
	Role string
}

// Error returns the error string.
func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("loom: %s entity is already scheduled in another in-flight run", e.Role)
}

// IsConcurrentModification returns true if the error is a ConcurrentModificationError.
func IsConcurrentModification(err error) bool {
	var e *ConcurrentModificationError
	return errors.As(err, &e)
}

// ConstraintError wraps a database-level constraint rejection.
type ConstraintError struct {
	msg  string
	wrap error
}

// Error returns the error string.
func (e *ConstraintError) Error() string {
	return fmt.Sprintf("loom: constraint failed: %s", e.msg)
}

// Unwrap returns the underlying driver error.
func (e *ConstraintError) Unwrap() error { return e.wrap }

// NewConstraintError returns a new ConstraintError with the given message.
func NewConstraintError(msg string, wrap error) *ConstraintError {
	return &ConstraintError{msg: msg, wrap: wrap}
}

// IsConstraintViolation returns true if the error is a ConstraintError.
func IsConstraintViolation(err error) bool {
	var e *ConstraintError
	return errors.As(err, &e)
}

// StaleStateError is returned when the snapshot's assumptions no
// longer hold against the database, e.g. an update or delete matched
// no row because the entity changed through an untracked path.
type StaleStateError struct {
	Role  string
	Table string
}

// Error returns the error string.
func (e *StaleStateError) Error() string {
	return fmt.Sprintf("loom: stale state for %s: row in %s no longer matches the tracked snapshot", e.Role, e.Table)
}

// IsStaleState returns true if the error is a StaleStateError.
func IsStaleState(err error) bool {
	var e *StaleStateError
	return errors.As(err, &e)
}

// AdapterError wraps a transport or driver failure that is not a
// constraint violation.
type AdapterError struct {
	Op  string
	Err error
}

// Error returns the error string.
func (e *AdapterError) Error() string {
	return fmt.Sprintf("loom: adapter: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *AdapterError) Unwrap() error { return e.Err }

// IsAdapterError returns true if the error is an AdapterError.
func IsAdapterError(err error) bool {
	var e *AdapterError
	return errors.As(err, &e)
}

// NotFoundError is returned by Session.Find when no row matches the
// given primary key.
type NotFoundError struct {
	Role string
	ID   any
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("loom: %s not found (id=%v)", e.Role, e.ID)
}

// Is reports whether the target error matches NotFoundError, which
// makes errors.Is(err, ErrNotFound) work.
func (e *NotFoundError) Is(err error) bool { return err == ErrNotFound }

// IsNotFound returns true if the error reports a missing entity.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}
