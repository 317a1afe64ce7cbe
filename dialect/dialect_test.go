package dialect_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/loom/dialect"
	sqldialect "github.com/syssam/loom/dialect/sql"
)

func TestDebugDriver(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	drv := dialect.Debug(sqldialect.OpenDB(dialect.SQLite, db), logger)
	require.Equal(t, dialect.SQLite, drv.Dialect())

	mock.ExpectExec("CREATE TABLE users").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, drv.Exec(context.Background(), "CREATE TABLE users (id INTEGER)", []any{}, nil))
	assert.Contains(t, buf.String(), "dialect.Exec")
	assert.Contains(t, buf.String(), "CREATE TABLE users")

	buf.Reset()
	mock.ExpectBegin()
	mock.ExpectExec("INSERT").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	tx, err := drv.Tx(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Exec(context.Background(), "INSERT INTO users DEFAULT VALUES", []any{}, nil))
	require.NoError(t, tx.Commit())
	assert.Contains(t, buf.String(), "Tx.Exec")
	assert.Contains(t, buf.String(), "event=commit")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNopTx(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	tx := dialect.NopTx(sqldialect.OpenDB(dialect.SQLite, db))
	require.NoError(t, tx.Commit())
	require.NoError(t, tx.Rollback())
}
