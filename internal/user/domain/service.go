package domain

import (
	"context"
	"errors"
)

type CreateUserRequest struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Role        Role   `json:"role,omitempty"`
}

//go:generate mockgen -source=service.go -destination=./mocks/mock_service.go -package=mocks
type Service interface {
	// Create registers a directory account with a handle slugged from the
	// display name. Used by seeding; account management lives upstream.
	Create(ctx context.Context, req CreateUserRequest) (*User, error)
	// GetByID returns the user or ErrUserNotFound.
	GetByID(ctx context.Context, userID string) (*User, error)
	// RequireActive layers ErrUserInactive over GetByID.
	RequireActive(ctx context.Context, userID string) (*User, error)
}

var (
	ErrUserNotFound  = errors.New("user_not_found")
	ErrUserInactive  = errors.New("user_inactive")
	ErrInvalidUserID = errors.New("invalid_user_id")
	ErrInvalidName   = errors.New("invalid_name")
	ErrInvalidEmail  = errors.New("invalid_email")
	ErrHandleTaken   = errors.New("handle_taken")
)
