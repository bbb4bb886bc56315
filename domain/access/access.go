// Package access resolves a caller's role on a project. Every write path goes
// through it so that user references are normalized in exactly one place.
package access

import (
	"qdesign-backend/domain/project"
	apperrors "qdesign-backend/pkg/errors"
)

// Level is the capability an operation needs
type Level int

const (
	// Read allows any member
	Read Level = iota
	// Edit allows owners and editors
	Edit
	// Own allows the owner only
	Own
)

func (l Level) String() string {
	switch l {
	case Read:
		return "read"
	case Edit:
		return "edit"
	case Own:
		return "owner"
	default:
		return "unknown"
	}
}

// Evaluate returns the caller's role among members. The second result is
// false when the caller is not a member.
func Evaluate(members []project.Member, userID string) (project.Role, bool) {
	for _, m := range members {
		if m.User.Is(userID) {
			return m.Role, true
		}
	}
	return "", false
}

// Allows reports whether role satisfies level
func Allows(role project.Role, level Level) bool {
	switch level {
	case Read:
		return role.IsValid()
	case Edit:
		return role == project.RoleOwner || role == project.RoleEditor
	case Own:
		return role == project.RoleOwner
	}
	return false
}

// Require resolves the caller's role and fails with AccessDenied when it
// does not satisfy level
func Require(p *project.Project, userID string, level Level) (project.Role, error) {
	role, ok := Evaluate(p.Members, userID)
	if !ok {
		return "", apperrors.NewAccessDenied("not a member of this project")
	}
	if !Allows(role, level) {
		return role, apperrors.NewAccessDenied(level.String() + " access required")
	}
	return role, nil
}

// RequireRead checks that the caller is a member
func RequireRead(p *project.Project, userID string) (project.Role, error) {
	return Require(p, userID, Read)
}

// RequireEdit checks that the caller is an owner or editor
func RequireEdit(p *project.Project, userID string) (project.Role, error) {
	return Require(p, userID, Edit)
}

// RequireOwner checks that the caller owns the project
func RequireOwner(p *project.Project, userID string) (project.Role, error) {
	return Require(p, userID, Own)
}

// CanJoin fails with Conflict when the caller is already a member
func CanJoin(p *project.Project, userID string) error {
	if _, ok := Evaluate(p.Members, userID); ok {
		return apperrors.NewConflict("already a member of this project")
	}
	return nil
}

// CanDeleteComment allows only the comment's author, whatever their role
func CanDeleteComment(author project.UserRef, userID string) error {
	if !author.Is(userID) {
		return apperrors.NewAccessDenied("only the author can delete this comment")
	}
	return nil
}
