package sql

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstraintErrorPostgres(t *testing.T) {
	tests := []struct {
		code   pq.ErrorCode
		unique bool
		fk     bool
		check  bool
		null   bool
	}{
		{code: "23505", unique: true},
		{code: "23503", fk: true},
		{code: "23514", check: true},
		{code: "23502", null: true},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := error(&pq.Error{Code: tt.code})
			assert.True(t, IsConstraintError(err))
			assert.Equal(t, tt.unique, IsUniqueConstraintError(err))
			assert.Equal(t, tt.fk, IsForeignKeyConstraintError(err))
			assert.Equal(t, tt.check, IsCheckConstraintError(err))
			assert.Equal(t, tt.null, IsNotNullConstraintError(err))
		})
	}
}

func TestConstraintErrorMySQL(t *testing.T) {
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'a8m' for key 'users.email'"}
	require.True(t, IsConstraintError(dup))
	require.True(t, IsUniqueConstraintError(dup))
	require.False(t, IsForeignKeyConstraintError(dup))

	for _, number := range []uint16{1451, 1452} {
		err := &mysql.MySQLError{Number: number, Message: "a foreign key constraint fails"}
		require.True(t, IsForeignKeyConstraintError(err), "number %d", number)
	}
	// The driver reports errors through Error() as "Error NNNN: ...".
	require.True(t, IsUniqueConstraintError(fmt.Errorf("exec: %w", errors.New("Error 1062 (23000): Duplicate entry"))))
}

func TestConstraintErrorSQLite(t *testing.T) {
	require.True(t, IsUniqueConstraintError(errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)")))
	require.True(t, IsForeignKeyConstraintError(errors.New("constraint failed: FOREIGN KEY constraint failed (787)")))
	require.True(t, IsCheckConstraintError(errors.New("constraint failed: CHECK constraint failed: age (275)")))
	require.True(t, IsNotNullConstraintError(errors.New("constraint failed: NOT NULL constraint failed: users.name (1299)")))
}

func TestConstraintErrorWrapped(t *testing.T) {
	err := fmt.Errorf("dialect/sql: exec: %w", &pq.Error{Code: "23505"})
	require.True(t, IsUniqueConstraintError(err))
	require.True(t, IsConstraintError(err))
}

func TestNotConstraintError(t *testing.T) {
	require.False(t, IsConstraintError(nil))
	require.False(t, IsConstraintError(errors.New("driver: bad connection")))
	require.False(t, IsUniqueConstraintError(errors.New("context canceled")))
}
