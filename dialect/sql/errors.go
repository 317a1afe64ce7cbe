package sql

import (
	"errors"
	"strings"
)

// errorCoder is implemented by database errors that expose a string
// error code (pq.Error, pgx, modernc.org/sqlite).
type errorCoder interface {
	Code() string
}

// errorNumberer is implemented by database errors that expose a
// numeric error code (mysql.MySQLError).
type errorNumberer interface {
	Number() uint16
}

// sqlStateError is implemented by errors that expose a SQLSTATE code.
type sqlStateError interface {
	SQLState() string
}

// PostgreSQL SQLSTATE codes for constraint violations (Class 23).
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgNotNullViolation    = "23502"
)

// MySQL error numbers for constraint violations.
const (
	mysqlDuplicateEntry   = 1062
	mysqlForeignKeyParent = 1451 // Cannot delete or update a parent row.
	mysqlForeignKeyChild  = 1452 // Cannot add or update a child row.
	mysqlCheckViolation   = 3819
)

// IsConstraintError reports whether the error resulted from a
// database-level constraint violation of any kind.
func IsConstraintError(err error) bool {
	return IsUniqueConstraintError(err) ||
		IsForeignKeyConstraintError(err) ||
		IsCheckConstraintError(err) ||
		IsNotNullConstraintError(err)
}

// IsUniqueConstraintError reports whether the error resulted from a
// uniqueness constraint violation, e.g. a duplicate value in a unique index.
func IsUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if hasSQLState(err, pgUniqueViolation) || hasCode(err, pgUniqueViolation) || hasNumber(err, mysqlDuplicateEntry) {
		return true
	}
	// String fallback for drivers that implement none of the interfaces.
	return containsAny(err.Error(),
		"Error 1062",                 // MySQL
		"violates unique constraint", // Postgres
		"UNIQUE constraint failed",   // SQLite
	)
}

// IsForeignKeyConstraintError reports whether the error resulted from
// a foreign-key constraint violation, e.g. a missing parent row.
func IsForeignKeyConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if hasSQLState(err, pgForeignKeyViolation) || hasCode(err, pgForeignKeyViolation) ||
		hasNumber(err, mysqlForeignKeyParent) || hasNumber(err, mysqlForeignKeyChild) {
		return true
	}
	return containsAny(err.Error(),
		"Error 1451",                      // MySQL
		"Error 1452",                      // MySQL
		"violates foreign key constraint", // Postgres
		"FOREIGN KEY constraint failed",   // SQLite
	)
}

// IsCheckConstraintError reports whether the error resulted from a
// check constraint violation.
func IsCheckConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if hasSQLState(err, pgCheckViolation) || hasCode(err, pgCheckViolation) || hasNumber(err, mysqlCheckViolation) {
		return true
	}
	return containsAny(err.Error(),
		"Error 3819",                // MySQL
		"violates check constraint", // Postgres
		"CHECK constraint failed",   // SQLite
	)
}

// IsNotNullConstraintError reports whether the error resulted from a
// NOT NULL constraint violation.
func IsNotNullConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if hasSQLState(err, pgNotNullViolation) || hasCode(err, pgNotNullViolation) {
		return true
	}
	return containsAny(err.Error(),
		"cannot be null",             // MySQL
		"violates not-null",          // Postgres
		"NOT NULL constraint failed", // SQLite
	)
}

func hasSQLState(err error, state string) bool {
	e, ok := asError[sqlStateError](err)
	return ok && e.SQLState() == state
}

func hasCode(err error, code string) bool {
	e, ok := asError[errorCoder](err)
	return ok && e.Code() == code
}

func hasNumber(err error, number uint16) bool {
	e, ok := asError[errorNumberer](err)
	return ok && e.Number() == number
}

// asError extracts an error implementing T from the error chain.
func asError[T any](err error) (T, bool) {
	var target T
	for err != nil {
		if e, ok := err.(T); ok {
			return e, true
		}
		err = errors.Unwrap(err)
	}
	return target, false
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
