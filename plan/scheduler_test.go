package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertCmd(table string, assigns ...Assign) *Command {
	return &Command{Kind: KindInsert, Table: table, Assigns: assigns}
}

func TestScheduleRegistrationOrder(t *testing.T) {
	a := insertCmd("a")
	b := insertCmd("b")
	c := insertCmd("c")
	out, err := Schedule([]*Command{a, b, c})
	require.NoError(t, err)
	assert.Equal(t, []*Command{a, b, c}, out)
}

func TestScheduleDependencies(t *testing.T) {
	users := insertCmd("users")
	posts := insertCmd("posts", Assign{Column: "author_id", Value: &ColumnRef{Cmd: users, Column: "id"}})
	posts.DependsOn(users, false)
	comments := insertCmd("comments")
	comments.DependsOn(posts, false)

	// Registration order reversed; dependencies still win.
	out, err := Schedule([]*Command{comments, posts, users})
	require.NoError(t, err)
	assert.Equal(t, []*Command{users, posts, comments}, out)
}

func TestScheduleStableTieBreak(t *testing.T) {
	root := insertCmd("root")
	c1 := insertCmd("c1")
	c1.DependsOn(root, false)
	c2 := insertCmd("c2")
	c2.DependsOn(root, false)
	c3 := insertCmd("c3")
	c3.DependsOn(root, false)
	out, err := Schedule([]*Command{c3, c2, root, c1})
	require.NoError(t, err)
	// Ready commands run in registration order.
	assert.Equal(t, []*Command{root, c3, c2, c1}, out)
}

func TestScheduleBreaksCycle(t *testing.T) {
	// users.best_post -> posts, posts.author_id -> users. The users FK
	// is nullable, so the insert splits into insert + late update.
	users := insertCmd("users", Assign{Column: "name", Value: "a8m"})
	posts := insertCmd("posts", Assign{Column: "title", Value: "hi"})
	users.Assigns = append(users.Assigns, Assign{Column: "best_post_id", Value: &ColumnRef{Cmd: posts, Column: "id"}})
	posts.Assigns = append(posts.Assigns, Assign{Column: "author_id", Value: &ColumnRef{Cmd: users, Column: "id"}})
	users.PKCols = []string{"id"}
	users.DependsOn(posts, true, "best_post_id")
	posts.DependsOn(users, false)

	out, err := Schedule([]*Command{users, posts})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Same(t, users, out[0])
	assert.Same(t, posts, out[1])

	update := out[2]
	assert.Equal(t, KindUpdate, update.Kind)
	assert.Equal(t, "users", update.Table)
	// The deferred column moved from the insert to the update.
	assert.Equal(t, []Assign{{Column: "best_post_id", Value: &ColumnRef{Cmd: posts, Column: "id"}}}, update.Assigns)
	assert.Equal(t, []Assign{{Column: "name", Value: "a8m"}}, users.Assigns)
	// The update row is addressed through the insert's generated key.
	require.Len(t, update.PKVals, 1)
	ref, ok := update.PKVals[0].(*ColumnRef)
	require.True(t, ok)
	assert.Same(t, users, ref.Cmd)
	assert.Equal(t, "id", ref.Column)
}

func TestScheduleSelfReference(t *testing.T) {
	// A node whose parent_id points to itself.
	node := insertCmd("nodes", Assign{Column: "name", Value: "root"})
	node.Assigns = append(node.Assigns, Assign{Column: "parent_id", Value: &ColumnRef{Cmd: node, Column: "id"}})
	node.PKCols = []string{"id"}
	node.DependsOn(node, true, "parent_id")

	out, err := Schedule([]*Command{node})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Same(t, node, out[0])
	assert.Equal(t, KindUpdate, out[1].Kind)
	assert.Equal(t, []Assign{{Column: "parent_id", Value: &ColumnRef{Cmd: node, Column: "id"}}}, out[1].Assigns)
}

func TestScheduleIrreducibleCycle(t *testing.T) {
	// Mutual non-nullable foreign keys cannot be deferred.
	a := insertCmd("alphas", Assign{Column: "beta_id", Value: 1})
	b := insertCmd("betas", Assign{Column: "alpha_id", Value: 2})
	a.DependsOn(b, false)
	b.DependsOn(a, false)

	_, err := Schedule([]*Command{a, b})
	var cerr *CycleError
	require.ErrorAs(t, err, &cerr)
	assert.ElementsMatch(t, []string{"alphas", "betas"}, cerr.Tables)
	assert.Contains(t, cerr.Error(), "dependency cycle")
}

func TestScheduleDropsUnassignedDeferrable(t *testing.T) {
	// A deferrable dep whose column the insert never assigns orders
	// nothing and must not produce an empty update.
	a := insertCmd("alphas")
	b := insertCmd("betas")
	a.DependsOn(b, true, "beta_id")
	b.DependsOn(a, false)

	_, err := Schedule([]*Command{a, b})
	var cerr *CycleError
	require.ErrorAs(t, err, &cerr)
}

func TestScheduleDeferrableSatisfiedInOrder(t *testing.T) {
	// A deferrable dep that can be satisfied without splitting stays on
	// the insert.
	users := insertCmd("users")
	posts := insertCmd("posts", Assign{Column: "author_id", Value: &ColumnRef{Cmd: users, Column: "id"}})
	posts.DependsOn(users, true, "author_id")

	out, err := Schedule([]*Command{posts, users})
	require.NoError(t, err)
	assert.Equal(t, []*Command{users, posts}, out)
	// No split happened; the assign stayed on the insert.
	require.Len(t, posts.Assigns, 1)
}
