package plan

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/loom/schema"
)

func userDef() *schema.Definition {
	return &schema.Definition{
		Role:       "user",
		PrimaryKey: []string{"id"},
		Columns: []schema.Column{
			{Name: "id", Generated: schema.GenAutoIncrement},
			{Name: "name"},
			{Name: "age", Cast: "int"},
			{Name: "spouse_id", Nullable: true},
		},
	}
}

func TestInsert(t *testing.T) {
	t.Run("autoincrement key omitted", func(t *testing.T) {
		c, err := Insert(userDef(), map[string]any{"name": "a8m", "age": 30}, nil)
		require.NoError(t, err)
		assert.Equal(t, KindInsert, c.Kind)
		assert.Equal(t, "users", c.Table)
		assert.Equal(t, "id", c.Returning)
		assert.Equal(t, []Assign{{Column: "name", Value: "a8m"}, {Column: "age", Value: int64(30)}}, c.Assigns)
		assert.Equal(t, []any{nil}, c.PKVals)
	})
	t.Run("uuid key generated", func(t *testing.T) {
		def := &schema.Definition{
			Role:       "post",
			PrimaryKey: []string{"id"},
			Columns: []schema.Column{
				{Name: "id", Generated: schema.GenUUID, Cast: "uuid"},
				{Name: "title"},
			},
		}
		c, err := Insert(def, map[string]any{"title": "hello"}, nil)
		require.NoError(t, err)
		assert.Empty(t, c.Returning)
		require.Len(t, c.Assigns, 2)
		assert.Equal(t, "id", c.Assigns[0].Column)
		_, err = uuid.Parse(c.Assigns[0].Value.(string))
		require.NoError(t, err)
		assert.Equal(t, c.Assigns[0].Value, c.PKVals[0])

		// A caller-supplied key wins over generation.
		id := uuid.New()
		c, err = Insert(def, map[string]any{"id": id, "title": "hello"}, nil)
		require.NoError(t, err)
		assert.Equal(t, id.String(), c.Assigns[0].Value)
	})
	t.Run("caller-supplied autoincrement key kept", func(t *testing.T) {
		c, err := Insert(userDef(), map[string]any{"id": int64(42), "name": "a8m"}, nil)
		require.NoError(t, err)
		assert.Empty(t, c.Returning)
		assert.Equal(t, []Assign{{Column: "id", Value: int64(42)}, {Column: "name", Value: "a8m"}}, c.Assigns)
		assert.Equal(t, []any{int64(42)}, c.PKVals)
	})
	t.Run("absent columns omitted", func(t *testing.T) {
		c, err := Insert(userDef(), map[string]any{"name": "a8m"}, nil)
		require.NoError(t, err)
		assert.Equal(t, []Assign{{Column: "name", Value: "a8m"}}, c.Assigns)
	})
	t.Run("cast failure", func(t *testing.T) {
		_, err := Insert(userDef(), map[string]any{"age": "not-a-number"}, nil)
		require.Error(t, err)
	})
}

func TestDiff(t *testing.T) {
	snap := map[string]any{"id": int64(1), "name": "a8m", "age": int64(30), "spouse_id": nil}
	t.Run("changed columns only", func(t *testing.T) {
		c, err := Diff(userDef(), snap, map[string]any{"id": int64(1), "name": "nati", "age": 30}, nil)
		require.NoError(t, err)
		require.NotNil(t, c)
		assert.Equal(t, KindUpdate, c.Kind)
		assert.Equal(t, []Assign{{Column: "name", Value: "nati"}}, c.Assigns)
		assert.Equal(t, []string{"id"}, c.PKCols)
		assert.Equal(t, []any{int64(1)}, c.PKVals)
	})
	t.Run("no change is a no-op", func(t *testing.T) {
		c, err := Diff(userDef(), snap, map[string]any{"name": "a8m", "age": 30}, nil)
		require.NoError(t, err)
		assert.Nil(t, c)
	})
	t.Run("primary key never updated", func(t *testing.T) {
		c, err := Diff(userDef(), snap, map[string]any{"id": int64(99), "name": "a8m", "age": 30}, nil)
		require.NoError(t, err)
		assert.Nil(t, c)
	})
	t.Run("numeric widths compare equal", func(t *testing.T) {
		c, err := Diff(userDef(), map[string]any{"id": int64(1), "age": int64(30)}, map[string]any{"age": 30}, nil)
		require.NoError(t, err)
		assert.Nil(t, c)
	})
	t.Run("late-bound value always included", func(t *testing.T) {
		ref := &ColumnRef{Cmd: &Command{}, Column: "id"}
		c, err := Diff(userDef(), snap, map[string]any{"spouse_id": ref}, nil)
		require.NoError(t, err)
		require.NotNil(t, c)
		assert.Equal(t, []Assign{{Column: "spouse_id", Value: ref}}, c.Assigns)
	})
	t.Run("missing snapshot key", func(t *testing.T) {
		_, err := Diff(userDef(), map[string]any{"name": "a8m"}, map[string]any{"name": "nati"}, nil)
		require.ErrorContains(t, err, "missing primary key")
	})
}

func TestDelete(t *testing.T) {
	c, err := Delete(userDef(), map[string]any{"id": int64(3), "name": "a8m"}, nil)
	require.NoError(t, err)
	assert.Equal(t, KindDelete, c.Kind)
	assert.Equal(t, []any{int64(3)}, c.PKVals)
	assert.Empty(t, c.Assigns)

	_, err = Delete(userDef(), map[string]any{}, nil)
	require.ErrorContains(t, err, "missing primary key")
}

func TestSetNull(t *testing.T) {
	c, err := SetNull(userDef(), "spouse_id", map[string]any{"id": int64(4)}, nil)
	require.NoError(t, err)
	assert.Equal(t, KindUpdate, c.Kind)
	assert.Equal(t, []Assign{{Column: "spouse_id", Value: nil}}, c.Assigns)
	assert.Equal(t, []any{int64(4)}, c.PKVals)
}

func TestPivot(t *testing.T) {
	through := &schema.Through{Table: "group_users", SourceColumn: "user_id", TargetColumn: "group_id"}
	c := Pivot(through, 1, 2)
	assert.Equal(t, KindInsert, c.Kind)
	assert.Equal(t, "group_users", c.Table)
	assert.Nil(t, c.Def)
	assert.Equal(t, []Assign{{Column: "user_id", Value: 1}, {Column: "group_id", Value: 2}}, c.Assigns)
}

func TestValueEqual(t *testing.T) {
	now := time.Now()
	assert.True(t, valueEqual(nil, nil))
	assert.False(t, valueEqual(nil, 1))
	assert.True(t, valueEqual(int64(5), 5))
	assert.True(t, valueEqual(uint8(5), 5))
	assert.True(t, valueEqual(float32(1.5), 1.5))
	assert.True(t, valueEqual("a", []byte("a")))
	assert.True(t, valueEqual(now, now.UTC()))
	assert.False(t, valueEqual("a", "b"))
	assert.True(t, valueEqual([]any{1}, []any{1}))
}
