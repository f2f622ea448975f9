// Package domain defines the monthly usage aggregates tracked per user.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// UsageMetrics is one user's aggregate for a single calendar month. Buckets
// are created lazily by the first increment; months without activity simply
// have no row, which reads back as all zeroes.
type UsageMetrics struct {
	ID     snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID snowflake.ID `gorm:"not null;uniqueIndex:ux_usage_metrics_period,priority:1" json:"user_id"`
	Month  int          `gorm:"not null;uniqueIndex:ux_usage_metrics_period,priority:2" json:"month"`
	Year   int          `gorm:"not null;uniqueIndex:ux_usage_metrics_period,priority:3" json:"year"`

	RegionsCreated int     `gorm:"not null;default:0" json:"regions_created"`
	PlacesCreated  int     `gorm:"not null;default:0" json:"places_created"`
	CheckinsCount  int     `gorm:"not null;default:0" json:"checkins_count"`
	ImagesUploaded int     `gorm:"not null;default:0" json:"images_uploaded"`
	StorageUsedMB  float64 `gorm:"column:storage_used_mb;not null;default:0" json:"storage_used_mb"`
	APICallsCount  int     `gorm:"not null;default:0" json:"api_calls_count"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (UsageMetrics) TableName() string { return "usage_metrics" }

// PeriodKey orders buckets chronologically as a single comparable integer,
// e.g. March 2026 -> 202603. Used for range filters and history cursors.
func (m UsageMetrics) PeriodKey() int { return PeriodKey(m.Year, m.Month) }

// PeriodKey collapses (year, month) into year*100+month.
func PeriodKey(year, month int) int { return year*100 + month }

// UsageEvent is the append-only audit trail written by the auto-recorder.
// Rows are never updated or deleted.
type UsageEvent struct {
	ID            snowflake.ID      `gorm:"primaryKey" json:"id"`
	UserID        snowflake.ID      `gorm:"not null;index" json:"user_id"`
	EventType     string            `gorm:"type:text;not null" json:"event_type"`
	Metadata      datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CorrelationID string            `gorm:"type:text" json:"correlation_id,omitempty"`
	CreatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (UsageEvent) TableName() string { return "usage_events" }
