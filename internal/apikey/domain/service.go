package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	// Create mints a key and returns the plain secret exactly once. Caller
	// must hold the api_keys write permission.
	Create(ctx context.Context, callerID string, req CreateRequest) (*SecretResponse, error)
	// List returns all keys, revoked ones included, without secrets.
	List(ctx context.Context, callerID string) ([]Response, error)
	// Revoke disables the key identified by its prefix. Revoking an already
	// revoked key is a no-op.
	Revoke(ctx context.Context, callerID string, prefix string) error
	// Verify authenticates a presented key and checks it carries the scope.
	// Success touches last_used_at best-effort.
	Verify(ctx context.Context, raw string, scope string) (*APIKey, error)
}

type CreateRequest struct {
	Name   string   `json:"name"`
	Scopes []string `json:"scopes"`
}

type Response struct {
	ID         snowflake.ID `json:"id"`
	Name       string       `json:"name"`
	Prefix     string       `json:"prefix"`
	Scopes     []string     `json:"scopes"`
	CreatedAt  time.Time    `json:"created_at"`
	LastUsedAt *time.Time   `json:"last_used_at"`
	RevokedAt  *time.Time   `json:"revoked_at"`
}

// SecretResponse carries the plain key. It is never persisted and never
// returned by any other operation.
type SecretResponse struct {
	Prefix string `json:"prefix"`
	APIKey string `json:"api_key"`
}

var (
	ErrInvalidName  = errors.New("invalid_name")
	ErrInvalidScope = errors.New("invalid_scope")
	ErrKeyNotFound  = errors.New("api_key_not_found")
	ErrKeyRevoked   = errors.New("api_key_revoked")
	ErrKeyInvalid   = errors.New("api_key_invalid")
	ErrScopeMissing = errors.New("api_key_scope_missing")
)
