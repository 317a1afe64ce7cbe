package loom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/loom/schema"
)

func userTestDef() *schema.Definition {
	return &schema.Definition{
		Role:       "user",
		PrimaryKey: []string{"id"},
		Columns: []schema.Column{
			{Name: "id", Generated: schema.GenAutoIncrement},
			{Name: "full_name", Field: "name"},
			{Name: "email"},
		},
		Relations: []schema.Relation{
			{Name: "posts", Rel: schema.O2M, Target: "post", Column: "author_id", Cascade: schema.CascadeAll},
		},
	}
}

func TestRecordSetGet(t *testing.T) {
	r := NewRecord(userTestDef())
	assert.Equal(t, "user", r.Role())

	require.NoError(t, r.Set("name", "a8m"))
	require.NoError(t, r.Set("email", "a8m@example.com"))
	require.NoError(t, r.Set("posts", []any{}))

	v, ok := r.Get("name")
	require.True(t, ok)
	assert.Equal(t, "a8m", v)
	assert.Equal(t, "a8m@example.com", r.Value("email"))
	assert.Nil(t, r.Value("id"))

	r.Unset("email")
	_, ok = r.Get("email")
	assert.False(t, ok)
}

func TestRecordUnknownField(t *testing.T) {
	r := NewRecord(userTestDef())
	err := r.Set("shoe_size", 43)
	require.Error(t, err)
	assert.True(t, IsUnmappedEntity(err))

	assert.Panics(t, func() { r.MustSet("shoe_size", 43) })
	assert.NotPanics(t, func() { r.MustSet("name", "a8m") })
}

func TestRecordValuesCopy(t *testing.T) {
	r := NewRecord(userTestDef())
	r.MustSet("name", "a8m")
	values := r.Values()
	values["name"] = "changed"
	assert.Equal(t, "a8m", r.Value("name"))
}

func TestRecordMapper(t *testing.T) {
	def := userTestDef()
	m := NewRecordMapper(def)

	ent, err := m.Init()
	require.NoError(t, err)
	r, ok := ent.(*Record)
	require.True(t, ok)

	// Hydrate keys by column name, mapping to field names. Unknown
	// columns are ignored.
	ent, err = m.Hydrate(r, map[string]any{"id": int64(1), "full_name": "a8m", "legacy": true})
	require.NoError(t, err)
	r = ent.(*Record)
	assert.Equal(t, "a8m", r.Value("name"))
	assert.Equal(t, int64(1), r.Value("id"))
	_, ok = r.Get("legacy")
	assert.False(t, ok)

	r.MustSet("posts", []any{NewRecord(def)})
	values, err := m.Extract(r)
	require.NoError(t, err)
	assert.Contains(t, values, "posts")
	assert.Contains(t, values, "name")

	fields, err := m.FetchFields(r)
	require.NoError(t, err)
	assert.Contains(t, fields, "name")
	assert.NotContains(t, fields, "posts")
}

func TestRecordMapperWrongType(t *testing.T) {
	m := NewRecordMapper(userTestDef())
	_, err := m.Hydrate("not-a-record", nil)
	require.Error(t, err)
	_, err = m.Extract(42)
	require.Error(t, err)
	_, err = m.FetchFields(nil)
	require.Error(t, err)
}
