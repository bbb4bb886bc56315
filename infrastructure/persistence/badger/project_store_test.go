package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"qdesign-backend/domain/project"
	apperrors "qdesign-backend/pkg/errors"
)

func openTestStore(t *testing.T) *ProjectStore {
	t.Helper()
	s, err := Open(Options{InMemory: true}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newProject(t *testing.T, owner, code string, at time.Time) *project.Project {
	t.Helper()
	p, err := project.New("Spike Study", "binding", project.Ref(owner, ""), code, at)
	require.NoError(t, err)
	return p
}

func TestProjectStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	p := newProject(t, "alice", "ABCD1234", now)
	require.NoError(t, p.KnowledgeGraph.AddNode(project.GraphNode{ID: "n1", Type: "protein", Label: "Spike"}))
	require.NoError(t, s.Create(ctx, p))

	got, err := s.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
	assert.True(t, p.CreatedAt.Equal(got.CreatedAt))
	require.Len(t, got.KnowledgeGraph.Nodes, 1)
	assert.Equal(t, "Spike", got.KnowledgeGraph.Nodes[0].Label)

	byCode, err := s.GetByJoinCode(ctx, " abcd1234 ")
	require.NoError(t, err)
	assert.Equal(t, p.ID, byCode.ID)
}

func TestProjectStoreUniqueness(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	now := time.Now().UTC()

	p := newProject(t, "alice", "ABCD1234", now)
	require.NoError(t, s.Create(ctx, p))

	tests := []struct {
		name string
		p    *project.Project
	}{
		{name: "same id", p: p},
		{name: "same join code", p: newProject(t, "bob", "ABCD1234", now)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, apperrors.IsConflict(s.Create(ctx, tt.p)))
		})
	}
}

func TestProjectStoreMembershipIndex(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	older := newProject(t, "alice", "AAAA1111", base)
	newer := newProject(t, "alice", "BBBB2222", base.Add(time.Hour))
	require.NoError(t, s.Create(ctx, older))
	require.NoError(t, s.Create(ctx, newer))

	list, err := s.ListByMember(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)

	require.NoError(t, older.AddMember(project.Ref("bob", "Bob"), project.RoleEditor, base))
	require.NoError(t, s.Save(ctx, older))

	list, err = s.ListByMember(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, older.ID, list[0].ID)

	require.NoError(t, s.Delete(ctx, older.ID))

	list, err = s.ListByMember(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = s.GetByJoinCode(ctx, "AAAA1111")
	assert.True(t, apperrors.IsNotFound(err))
	assert.True(t, apperrors.IsNotFound(s.Save(ctx, older)))
	assert.True(t, apperrors.IsNotFound(s.Delete(ctx, older.ID)))
}

func TestDiffMembers(t *testing.T) {
	added, removed := diffMembers([]string{"a", "b"}, []string{"b", "c"})
	assert.Equal(t, []string{"c"}, added)
	assert.Equal(t, []string{"a"}, removed)
}
