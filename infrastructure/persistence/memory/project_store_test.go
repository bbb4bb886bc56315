package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qdesign-backend/domain/project"
	apperrors "qdesign-backend/pkg/errors"
)

func newProject(t *testing.T, owner, code string) *project.Project {
	t.Helper()
	p, err := project.New("Spike Study", "", project.Ref(owner, ""), code, time.Now().UTC())
	require.NoError(t, err)
	return p
}

func TestProjectStore(t *testing.T) {
	ctx := context.Background()
	store := NewProjectStore()

	p := newProject(t, "alice", "ABCD1234")
	require.NoError(t, store.Create(ctx, p))

	t.Run("join code must be unique", func(t *testing.T) {
		err := store.Create(ctx, newProject(t, "bob", "ABCD1234"))
		assert.True(t, apperrors.IsConflict(err))
	})

	t.Run("lookup by join code is case-insensitive", func(t *testing.T) {
		got, err := store.GetByJoinCode(ctx, "abcd1234")
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ID)
	})

	t.Run("returned documents are copies", func(t *testing.T) {
		got, err := store.GetByID(ctx, p.ID)
		require.NoError(t, err)
		got.Name = "changed"
		require.NoError(t, got.KnowledgeGraph.AddNode(project.GraphNode{ID: "n", Type: "t", Label: "l"}))

		again, err := store.GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "Spike Study", again.Name)
		assert.Empty(t, again.KnowledgeGraph.Nodes)
	})

	t.Run("save replaces the document", func(t *testing.T) {
		got, err := store.GetByID(ctx, p.ID)
		require.NoError(t, err)
		require.NoError(t, got.AddMember(project.Ref("bob", ""), project.RoleEditor, time.Now()))
		require.NoError(t, store.Save(ctx, got))

		list, err := store.ListByMember(ctx, "bob")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, p.ID, list[0].ID)

		list, err = store.ListByMember(ctx, "carol")
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("delete frees the join code", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, p.ID))

		_, err := store.GetByID(ctx, p.ID)
		assert.True(t, apperrors.IsNotFound(err))
		_, err = store.GetByJoinCode(ctx, "ABCD1234")
		assert.True(t, apperrors.IsNotFound(err))
		assert.True(t, apperrors.IsNotFound(store.Save(ctx, p)))

		require.NoError(t, store.Create(ctx, newProject(t, "bob", "ABCD1234")))
	})
}
