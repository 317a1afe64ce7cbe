// Package sql wraps database/sql behind the dialect.Driver interface
// and provides the small set of statement builders the persistence
// engine needs: single-row INSERT, UPDATE, DELETE and key-equality
// SELECT, with per-dialect identifier quoting and placeholders.
//
// The package also classifies driver errors: IsConstraintError and its
// variants recognize unique, foreign-key, check and not-null
// violations across Postgres, MySQL and SQLite without importing the
// drivers themselves.
//
//	drv, err := sql.Open(dialect.Postgres, dsn)
//	...
//	query, args := sql.Insert(drv.Dialect(), "users").
//		Set("name", "mashraki").
//		Returning("id").
//		Query()
package sql
