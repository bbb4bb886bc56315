package access

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qdesign-backend/domain/project"
	apperrors "qdesign-backend/pkg/errors"
)

func testProject(t *testing.T) *project.Project {
	t.Helper()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	p, err := project.New("Spike Study", "", project.Ref("owner", "Olga"), "ABCD1234", now)
	require.NoError(t, err)
	require.NoError(t, p.AddMember(project.Ref("editor", ""), project.RoleEditor, now))
	require.NoError(t, p.AddMember(project.Ref("viewer", ""), project.RoleViewer, now))
	return p
}

func TestRequire(t *testing.T) {
	p := testProject(t)

	tests := []struct {
		name   string
		userID string
		level  Level
		denied bool
	}{
		{name: "owner reads", userID: "owner", level: Read},
		{name: "viewer reads", userID: "viewer", level: Read},
		{name: "stranger cannot read", userID: "stranger", level: Read, denied: true},
		{name: "empty id cannot read", userID: "", level: Read, denied: true},
		{name: "editor edits", userID: "editor", level: Edit},
		{name: "owner edits", userID: "owner", level: Edit},
		{name: "viewer cannot edit", userID: "viewer", level: Edit, denied: true},
		{name: "owner owns", userID: "owner", level: Own},
		{name: "editor cannot delete", userID: "editor", level: Own, denied: true},
		{name: "viewer cannot delete", userID: "viewer", level: Own, denied: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Require(p, tt.userID, tt.level)
			if tt.denied {
				assert.True(t, apperrors.IsAccessDenied(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEvaluateNormalizesReferences(t *testing.T) {
	var members []project.Member
	raw := `[{"user":"u-1","role":"owner"},{"user":{"_id":"u-2","name":"Bea"},"role":"viewer"}]`
	require.NoError(t, json.Unmarshal([]byte(raw), &members))

	role, ok := Evaluate(members, "u-2")
	assert.True(t, ok)
	assert.Equal(t, project.RoleViewer, role)

	role, ok = Evaluate(members, " u-1")
	assert.True(t, ok)
	assert.Equal(t, project.RoleOwner, role)

	_, ok = Evaluate(members, "u-3")
	assert.False(t, ok)
}

func TestCanJoin(t *testing.T) {
	p := testProject(t)

	assert.NoError(t, CanJoin(p, "newcomer"))
	assert.True(t, apperrors.IsConflict(CanJoin(p, "editor")))
}

func TestCanDeleteComment(t *testing.T) {
	author := project.Ref("editor", "")

	assert.NoError(t, CanDeleteComment(author, "editor"))
	assert.True(t, apperrors.IsAccessDenied(CanDeleteComment(author, "owner")))
	assert.True(t, apperrors.IsAccessDenied(CanDeleteComment(project.UserRef{}, "")))
}
