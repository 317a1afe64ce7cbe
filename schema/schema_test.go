package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableName(t *testing.T) {
	tests := []struct {
		role  string
		table string
		want  string
	}{
		{role: "user", want: "users"},
		{role: "category", want: "categories"},
		{role: "orderLine", want: "order_lines"},
		{role: "user", table: "accounts", want: "accounts"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			d := &Definition{Role: tt.role, Table: tt.table}
			assert.Equal(t, tt.want, d.TableName())
		})
	}
}

func TestDefinitionLookups(t *testing.T) {
	d := &Definition{
		Role:       "user",
		PrimaryKey: []string{"id"},
		Columns: []Column{
			{Name: "id", Generated: GenAutoIncrement},
			{Name: "full_name", Field: "name"},
		},
		Relations: []Relation{
			{Name: "posts", Rel: O2M, Target: "post", Column: "author_id"},
		},
	}
	c, ok := d.Column("full_name")
	require.True(t, ok)
	assert.Equal(t, "name", c.FieldName())
	c, ok = d.ColumnByField("name")
	require.True(t, ok)
	assert.Equal(t, "full_name", c.Name)
	_, ok = d.Column("name")
	assert.False(t, ok)

	r, ok := d.Relation("posts")
	require.True(t, ok)
	assert.Equal(t, O2M, r.Rel)
	_, ok = d.Relation("groups")
	assert.False(t, ok)

	assert.Equal(t, []string{"id", "name"}, d.Fields())
	assert.True(t, d.IsPrimaryKey("id"))
	assert.False(t, d.IsPrimaryKey("full_name"))
}

func TestCascade(t *testing.T) {
	assert.True(t, CascadeAll.Persists())
	assert.False(t, CascadeDelete.Persists())
	assert.True(t, CascadeAll.Deletes())
	assert.True(t, CascadeDelete.Deletes())
	assert.False(t, CascadeSetNull.Deletes())
	assert.False(t, CascadeNone.Deletes())
	assert.Equal(t, CascadeDelete, MaxCascade(CascadeSetNull, CascadeDelete))
	assert.Equal(t, CascadeAll, MaxCascade(CascadeAll, CascadeNone))
}

func TestRegistry(t *testing.T) {
	r, err := NewRegistry(
		&Definition{Role: "user", PrimaryKey: []string{"id"}, Columns: []Column{{Name: "id"}}},
		&Definition{Role: "post", PrimaryKey: []string{"id"}, Columns: []Column{{Name: "id"}}},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"user", "post"}, r.Roles())

	d, err := r.Describe("user")
	require.NoError(t, err)
	assert.Equal(t, "user", d.Role)

	_, err = r.Describe("ghost")
	require.ErrorIs(t, err, ErrRoleNotFound)

	err = r.Register(&Definition{Role: "user"})
	require.ErrorContains(t, err, "already registered")
	err = r.Register(&Definition{})
	require.ErrorContains(t, err, "without a role")
}
