package core

import (
	"context"
)

// Identity is the authenticated principal carried in a session.
type Identity struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// RegisterInput carries the raw registration form fields.
type RegisterInput struct {
	Username        string
	Password        string
	ConfirmPassword string
}

// AuthService defines the credential side of the auth flow.
// Errors returned are *AppError values.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (Identity, error)
	Authenticate(ctx context.Context, username, password string) (Identity, error)
}
