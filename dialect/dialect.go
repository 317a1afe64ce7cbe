package dialect

import (
	"context"
	"log/slog"
	"time"
)

// Supported dialects.
const (
	MySQL    = "mysql"
	Postgres = "postgres"
	SQLite   = "sqlite"
)

// ExecQuerier wraps the two standard database operations.
type ExecQuerier interface {
	// Exec executes a statement that does not return rows. The args
	// parameter must be of type []any. For statements where the caller
	// needs the result, v must be a *sql.Result.
	Exec(ctx context.Context, query string, args, v any) error
	// Query executes a statement that returns rows. v must be a
	// *sql.Rows compatible destination (see dialect/sql.Rows).
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the minimal interface the persistence engine needs from a
// database. dialect/sql provides the standard database/sql-backed
// implementation.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	Tx(ctx context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx is a transaction handle returned by Driver.Tx. Statements issued
// through its ExecQuerier run inside the transaction.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}

type nopTx struct {
	Driver
}

func (nopTx) Commit() error   { return nil }
func (nopTx) Rollback() error { return nil }

// NopTx returns a Tx with a no-op Commit and Rollback on top of the
// given driver. Useful for tests and for drivers without transactions.
func NopTx(d Driver) Tx {
	return nopTx{d}
}

// DebugDriver is a driver that logs all driver operations through slog.
type DebugDriver struct {
	Driver
	log *slog.Logger
}

// Debug wraps a driver and logs every statement at Debug level.
func Debug(d Driver, logger *slog.Logger) Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &DebugDriver{d, logger}
}

// Exec logs its params and calls the underlying driver Exec method.
func (d *DebugDriver) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Exec(ctx, query, args, v)
	d.log.DebugContext(ctx, "dialect.Exec", "query", query, "args", args, "took", time.Since(start), "err", err)
	return err
}

// Query logs its params and calls the underlying driver Query method.
func (d *DebugDriver) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Query(ctx, query, args, v)
	d.log.DebugContext(ctx, "dialect.Query", "query", query, "args", args, "took", time.Since(start), "err", err)
	return err
}

// Tx wraps the transaction of the underlying driver so statements
// issued inside it are logged as well.
func (d *DebugDriver) Tx(ctx context.Context) (Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	d.log.DebugContext(ctx, "dialect.Tx", "event", "begin")
	return &DebugTx{tx, d.log, ctx}, nil
}

// DebugTx is a transaction handle that logs all transaction operations.
type DebugTx struct {
	Tx
	log *slog.Logger
	ctx context.Context
}

// Exec logs its params and calls the underlying transaction Exec method.
func (d *DebugTx) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Tx.Exec(ctx, query, args, v)
	d.log.DebugContext(ctx, "Tx.Exec", "query", query, "args", args, "took", time.Since(start), "err", err)
	return err
}

// Query logs its params and calls the underlying transaction Query method.
func (d *DebugTx) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Tx.Query(ctx, query, args, v)
	d.log.DebugContext(ctx, "Tx.Query", "query", query, "args", args, "took", time.Since(start), "err", err)
	return err
}

// Commit logs the commit and calls the underlying transaction Commit.
func (d *DebugTx) Commit() error {
	err := d.Tx.Commit()
	d.log.DebugContext(d.ctx, "dialect.Tx", "event", "commit", "err", err)
	return err
}

// Rollback logs the rollback and calls the underlying transaction Rollback.
func (d *DebugTx) Rollback() error {
	err := d.Tx.Rollback()
	d.log.DebugContext(d.ctx, "dialect.Tx", "event", "rollback", "err", err)
	return err
}
