package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mappingDoc = `
roles:
  user:
    primaryKey: [id]
    columns:
      - name: id
        generated: autoincrement
      - name: full_name
        field: name
      - name: email
    relations:
      - name: posts
        rel: o2m
        target: post
        column: author_id
        cascade: all
      - name: groups
        rel: m2m
        target: group
        cascade: all
        through:
          table: group_users
          sourceColumn: user_id
          targetColumn: group_id
  post:
    table: articles
    primaryKey: [id]
    columns:
      - name: id
        generated: uuid
        cast: uuid
      - name: title
      - name: author_id
        nullable: true
    relations:
      - name: author
        rel: m2o
        target: user
        owning: true
        column: author_id
        nullable: true
  group:
    primaryKey: [id]
    columns:
      - name: id
        generated: autoincrement
      - name: name
`

func TestFromYAML(t *testing.T) {
	r, err := FromYAML([]byte(mappingDoc))
	require.NoError(t, err)
	assert.Equal(t, []string{"group", "post", "user"}, r.Roles())

	user, err := r.Describe("user")
	require.NoError(t, err)
	assert.Equal(t, "users", user.TableName())
	c, ok := user.ColumnByField("name")
	require.True(t, ok)
	assert.Equal(t, "full_name", c.Name)
	rel, ok := user.Relation("groups")
	require.True(t, ok)
	require.NotNil(t, rel.Through)
	assert.Equal(t, "group_users", rel.Through.Table)
	assert.Equal(t, CascadeAll, rel.Cascade)

	post, err := r.Describe("post")
	require.NoError(t, err)
	assert.Equal(t, "articles", post.TableName())
	id, ok := post.Column("id")
	require.True(t, ok)
	assert.Equal(t, GenUUID, id.Generated)
	author, ok := post.Relation("author")
	require.True(t, ok)
	assert.True(t, author.Owning)
	assert.True(t, author.Nullable)
}

func TestFromYAMLErrors(t *testing.T) {
	_, err := FromYAML([]byte("roles: [broken"))
	require.ErrorContains(t, err, "parse mapping")

	_, err = FromYAML([]byte(`
roles:
  user:
    primaryKey: [id]
    columns:
      - name: id
        generated: sequence
`))
	require.ErrorContains(t, err, `unknown key generation "sequence"`)

	_, err = FromYAML([]byte(`
roles:
  user:
    primaryKey: [id]
    columns:
      - name: id
    relations:
      - name: posts
        rel: many
        target: post
`))
	require.ErrorContains(t, err, `unknown relation type "many"`)

	// Validation runs as part of loading.
	_, err = FromYAML([]byte(`
roles:
  user:
    primaryKey: [id]
    columns:
      - name: id
    relations:
      - name: posts
        rel: o2m
        target: post
        column: author_id
`))
	require.ErrorContains(t, err, "role not defined")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.yaml")
	require.NoError(t, os.WriteFile(path, []byte(mappingDoc), 0o600))
	r, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, r.Roles(), 3)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "open mapping")
}
