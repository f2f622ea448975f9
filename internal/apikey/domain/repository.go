package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, key *APIKey) error
	// FindByPrefix returns (nil, nil) when no key carries the prefix.
	FindByPrefix(ctx context.Context, db *gorm.DB, prefix string) (*APIKey, error)
	List(ctx context.Context, db *gorm.DB) ([]APIKey, error)
	Revoke(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
	TouchLastUsed(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
}
