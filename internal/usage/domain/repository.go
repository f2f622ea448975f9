package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository is the storage port for usage buckets and the audit trail.
type Repository interface {
	// IncrementUsage applies the candidate's metric fields additively to
	// the (user, month, year) bucket in a single statement, inserting the
	// row when absent. Concurrent increments must not lose updates.
	IncrementUsage(ctx context.Context, db *gorm.DB, candidate *UsageMetrics) error

	// FindBucket returns (nil, nil) when the month has no row.
	FindBucket(ctx context.Context, db *gorm.DB, userID snowflake.ID, month, year int) (*UsageMetrics, error)

	// SumYear aggregates every bucket of one calendar year and reports how
	// many months carried usage.
	SumYear(ctx context.Context, db *gorm.DB, userID snowflake.ID, year int) (Totals, int, error)

	// ListBuckets returns buckets ordered year desc, month desc. A non-zero
	// beforeKey (PeriodKey form) restricts results to strictly older months.
	ListBuckets(ctx context.Context, db *gorm.DB, userID snowflake.ID, beforeKey, limit int) ([]UsageMetrics, error)

	// AggregateByPlan sums buckets whose calendar month falls inside the
	// inclusive [startKey, endKey] range across every user on the plan.
	// Users without a subscription row count as plan "free".
	AggregateByPlan(ctx context.Context, db *gorm.DB, plan string, startKey, endKey int) (Totals, int, error)

	// InsertEvent appends one audit row.
	InsertEvent(ctx context.Context, db *gorm.DB, event *UsageEvent) error
}
