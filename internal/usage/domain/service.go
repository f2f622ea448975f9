package domain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/roamio/atlas/pkg/db/pagination"
)

//go:generate mockgen -source=service.go -destination=./mocks/mock_service.go -package=mocks

// MinYear is the earliest bucket year the meter accepts; the product did not
// exist before then, so anything earlier is a caller bug.
const MinYear = 2024

// Deltas is a partial set of increments applied to the caller's current
// monthly bucket. Absent fields stay zero and leave the stored value alone.
type Deltas struct {
	RegionsCreated int     `json:"regions_created,omitempty"`
	PlacesCreated  int     `json:"places_created,omitempty"`
	CheckinsCount  int     `json:"checkins_count,omitempty"`
	ImagesUploaded int     `json:"images_uploaded,omitempty"`
	StorageUsedMB  float64 `json:"storage_used_mb,omitempty"`
	APICallsCount  int     `json:"api_calls_count,omitempty"`
}

// Validate rejects negative or non-finite increments.
func (d Deltas) Validate() error {
	if math.IsNaN(d.StorageUsedMB) || math.IsInf(d.StorageUsedMB, 0) {
		return NewValidationError("storage_used_mb", "must be a finite number")
	}
	checks := []struct {
		field string
		value float64
	}{
		{"regions_created", float64(d.RegionsCreated)},
		{"places_created", float64(d.PlacesCreated)},
		{"checkins_count", float64(d.CheckinsCount)},
		{"images_uploaded", float64(d.ImagesUploaded)},
		{"storage_used_mb", d.StorageUsedMB},
		{"api_calls_count", float64(d.APICallsCount)},
	}
	for _, c := range checks {
		if c.value < 0 {
			return NewValidationError(c.field, "must not be negative")
		}
	}
	return nil
}

// Empty reports whether the deltas carry no increment at all. Empty deltas
// are accepted but write nothing, so untouched months stay absent.
func (d Deltas) Empty() bool { return d == Deltas{} }

// Totals is the metric tuple shared by summaries and aggregates.
type Totals struct {
	RegionsCreated int     `json:"regions_created"`
	PlacesCreated  int     `json:"places_created"`
	CheckinsCount  int     `json:"checkins_count"`
	ImagesUploaded int     `json:"images_uploaded"`
	StorageUsedMB  float64 `json:"storage_used_mb"`
	APICallsCount  int     `json:"api_calls_count"`
}

// Summary reports one user's usage for a single month. Months without a
// stored bucket report zeroes.
type Summary struct {
	UserID snowflake.ID `json:"user_id"`
	Month  int          `json:"month"`
	Year   int          `json:"year"`
	Totals
}

// YearlySummary sums a user's buckets across one calendar year.
type YearlySummary struct {
	UserID          snowflake.ID `json:"user_id"`
	Year            int          `json:"year"`
	MonthsWithUsage int          `json:"months_with_usage"`
	Totals
}

// PlanUsageAggregate sums usage across every user on a plan for an inclusive
// calendar-month range.
type PlanUsageAggregate struct {
	Plan      string    `json:"plan"`
	UserCount int       `json:"user_count"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Totals
}

type ListUsageHistoryRequest struct {
	UserID    string `json:"user_id"`
	PageToken string `json:"page_token"`
	PageSize  int32  `json:"page_size"`
}

type ListUsageHistoryResponse struct {
	pagination.PageInfo
	History []Summary `json:"history"`
}

type Service interface {
	// RecordUsage applies deltas to the caller's bucket for the month the
	// injected clock reports. Returns the post-increment summary.
	RecordUsage(ctx context.Context, userID string, deltas Deltas) (Summary, error)
	GetCurrentMonthUsage(ctx context.Context, userID string) (Summary, error)
	GetMonthlyUsage(ctx context.Context, userID string, month, year int) (Summary, error)
	GetYearlyUsage(ctx context.Context, userID string, year int) (YearlySummary, error)
	// GetUsageHistory returns the most recent buckets first (year desc,
	// month desc). limit <= 0 defaults to 12.
	GetUsageHistory(ctx context.Context, userID string, limit int) ([]Summary, error)
	// ListUsageHistory is the cursor-paginated variant used by the HTTP
	// surface.
	ListUsageHistory(ctx context.Context, req ListUsageHistoryRequest) (ListUsageHistoryResponse, error)
	// GetAggregatedUsageByPlan is admin-only; the caller must hold the
	// admin directory role.
	GetAggregatedUsageByPlan(ctx context.Context, callerID, plan string, start, end time.Time) (PlanUsageAggregate, error)
}

var (
	ErrValidation              = errors.New("validation_error")
	ErrAdminPermissionRequired = errors.New("admin_permission_required")
)

// ValidationError carries which field failed and why while still matching
// errors.Is(err, ErrValidation).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation_error: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ValidatePeriod guards month/year inputs before any store access.
func ValidatePeriod(month, year int) error {
	if month < 1 || month > 12 {
		return NewValidationError("month", "must be between 1 and 12")
	}
	return ValidateYear(year)
}

// ValidateYear guards year-only inputs the same way.
func ValidateYear(year int) error {
	if year < MinYear {
		return NewValidationError("year", fmt.Sprintf("must be %d or later", MinYear))
	}
	return nil
}
