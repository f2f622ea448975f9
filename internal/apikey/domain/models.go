package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
)

// Scopes an API key may carry. The ingest surface wants usage:write; read
// integrations get usage:read.
const (
	ScopeUsageWrite = "usage:write"
	ScopeUsageRead  = "usage:read"
)

// KnownScope reports whether s is one of the grantable scopes.
func KnownScope(s string) bool {
	return s == ScopeUsageWrite || s == ScopeUsageRead
}

// APIKey stores a hashed ingest credential. The prefix is the public
// identifier (and the only part ever displayed again); the plain key exists
// solely in the creation response.
type APIKey struct {
	ID         snowflake.ID   `gorm:"primaryKey" json:"id"`
	Name       string         `gorm:"type:text;not null" json:"name"`
	Prefix     string         `gorm:"type:text;not null;uniqueIndex:ux_api_keys_prefix" json:"prefix"`
	Hash       string         `gorm:"type:text;not null" json:"-"`
	Scopes     pq.StringArray `gorm:"type:text[];not null" json:"scopes"`
	CreatedAt  time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	LastUsedAt *time.Time     `json:"last_used_at"`
	RevokedAt  *time.Time     `json:"revoked_at"`
}

// TableName sets the database table name.
func (APIKey) TableName() string { return "api_keys" }

// Revoked reports whether the key has been revoked.
func (k *APIKey) Revoked() bool { return k.RevokedAt != nil }

// HasScope reports whether the key carries the given scope.
func (k *APIKey) HasScope(scope string) bool {
	for _, s := range k.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}
