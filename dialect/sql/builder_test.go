package sql

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/syssam/loom/dialect"
)

func TestInsertBuilder(t *testing.T) {
	t.Run("postgres", func(t *testing.T) {
		query, args := Insert(dialect.Postgres, "users").
			Set("name", "mashraki").
			Set("age", 30).
			Returning("id").
			Query()
		require.Equal(t, `INSERT INTO "users" ("name", "age") VALUES ($1, $2) RETURNING "id"`, query)
		require.Equal(t, []any{"mashraki", 30}, args)
	})
	t.Run("mysql", func(t *testing.T) {
		query, args := Insert(dialect.MySQL, "users").
			Set("name", "mashraki").
			Returning("id").
			Query()
		require.Equal(t, "INSERT INTO `users` (`name`) VALUES (?)", query)
		require.Equal(t, []any{"mashraki"}, args)
	})
	t.Run("no columns", func(t *testing.T) {
		query, args := Insert(dialect.SQLite, "users").Query()
		require.Equal(t, `INSERT INTO "users" DEFAULT VALUES`, query)
		require.Empty(t, args)
	})
}

func TestUpdateBuilder(t *testing.T) {
	query, args := Update(dialect.Postgres, "users").
		Set("name", "a8m").
		Set("age", 31).
		Where([]string{"id"}, []any{1}).
		Query()
	require.Equal(t, `UPDATE "users" SET "name" = $1, "age" = $2 WHERE "id" = $3`, query)
	require.Equal(t, []any{"a8m", 31, 1}, args)

	query, args = Update(dialect.MySQL, "users").
		Set("spouse_id", nil).
		Where([]string{"id"}, []any{2}).
		Query()
	require.Equal(t, "UPDATE `users` SET `spouse_id` = ? WHERE `id` = ?", query)
	require.Equal(t, []any{nil, 2}, args)
}

func TestDeleteBuilder(t *testing.T) {
	query, args := Delete(dialect.SQLite, "groups").
		Where([]string{"tenant", "id"}, []any{"a", 7}).
		Query()
	require.Equal(t, `DELETE FROM "groups" WHERE "tenant" = ? AND "id" = ?`, query)
	require.Equal(t, []any{"a", 7}, args)
}

func TestSelectBuilder(t *testing.T) {
	query, args := Select(dialect.Postgres, "users", "id", "name").
		Where([]string{"id"}, []any{10}).
		Query()
	require.Equal(t, `SELECT "id", "name" FROM "users" WHERE "id" = $1`, query)
	require.Equal(t, []any{10}, args)
}
