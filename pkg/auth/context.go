package auth

import (
	"context"
	"errors"
)

// UserContext represents the authenticated caller
type UserContext struct {
	UserID string
	Name   string
	Email  string
}

// DisplayName returns the name shown to other collaborators
func (u *UserContext) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	if u.Email != "" {
		return u.Email
	}
	return u.UserID
}

type contextKey string

const userContextKey contextKey = "user"

// ErrNoUser is returned when the request carries no authenticated user
var ErrNoUser = errors.New("user not found in context")

// GetUserFromContext extracts user from context
func GetUserFromContext(ctx context.Context) (*UserContext, error) {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	if !ok || user == nil {
		return nil, ErrNoUser
	}
	return user, nil
}

// SetUserInContext adds user to context
func SetUserInContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// FromClaims builds the caller context out of validated claims
func FromClaims(claims *Claims) *UserContext {
	return &UserContext{
		UserID: claims.UserID,
		Name:   claims.Name,
		Email:  claims.Email,
	}
}
