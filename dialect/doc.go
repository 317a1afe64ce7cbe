// Package dialect provides the database abstraction consumed by the
// loom persistence engine.
//
// It defines the interfaces the engine needs from a database (execute
// a statement, run a query, open a transaction) without committing to
// a concrete driver. The dialect/sql sub-package implements them on
// top of database/sql.
//
// # Supported Dialects
//
// Each dialect is identified by a constant string:
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite"
//
// # Driver and Tx
//
// Driver is the entry point:
//
//	drv, err := sql.Open(dialect.Postgres, "postgres://...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
//
// Tx extends ExecQuerier with Commit and Rollback; every unit-of-work
// run executes inside exactly one Tx.
//
// # Debugging
//
// Debug wraps any Driver and logs every statement through log/slog:
//
//	drv = dialect.Debug(drv, slog.Default())
package dialect
