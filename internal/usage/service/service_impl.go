package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/roamio/atlas/internal/authorization"
	"github.com/roamio/atlas/internal/clock"
	subscriptiondomain "github.com/roamio/atlas/internal/subscription/domain"
	usagedomain "github.com/roamio/atlas/internal/usage/domain"
	userdomain "github.com/roamio/atlas/internal/user/domain"
	"github.com/roamio/atlas/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  usagedomain.Repository
	Users userdomain.Service
	Authz authorization.Service
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  usagedomain.Repository
	users userdomain.Service
	authz authorization.Service
}

func NewService(p Params) usagedomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("usage.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
		users: p.Users,
		authz: p.Authz,
	}
}

// RecordUsage implements domain.Service. The bucket month always comes from
// the injected clock; callers cannot backdate increments.
func (s *Service) RecordUsage(ctx context.Context, userID string, deltas usagedomain.Deltas) (usagedomain.Summary, error) {
	if err := deltas.Validate(); err != nil {
		return usagedomain.Summary{}, err
	}

	user, err := s.users.RequireActive(ctx, userID)
	if err != nil {
		return usagedomain.Summary{}, err
	}

	now := s.clock.Now()
	month, year := int(now.Month()), now.Year()

	// An all-zero delta is a no-op; skipping the write keeps untouched
	// months free of empty rows.
	if deltas.Empty() {
		return s.monthSummary(ctx, user.ID, month, year)
	}

	candidate := &usagedomain.UsageMetrics{
		ID:             s.genID.Generate(),
		UserID:         user.ID,
		Month:          month,
		Year:           year,
		RegionsCreated: deltas.RegionsCreated,
		PlacesCreated:  deltas.PlacesCreated,
		CheckinsCount:  deltas.CheckinsCount,
		ImagesUploaded: deltas.ImagesUploaded,
		StorageUsedMB:  deltas.StorageUsedMB,
		APICallsCount:  deltas.APICallsCount,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.IncrementUsage(ctx, s.db, candidate); err != nil {
		return usagedomain.Summary{}, fmt.Errorf("increment usage: %w", err)
	}

	return s.monthSummary(ctx, user.ID, month, year)
}

// GetCurrentMonthUsage implements domain.Service.
func (s *Service) GetCurrentMonthUsage(ctx context.Context, userID string) (usagedomain.Summary, error) {
	user, err := s.users.RequireActive(ctx, userID)
	if err != nil {
		return usagedomain.Summary{}, err
	}

	now := s.clock.Now()
	return s.monthSummary(ctx, user.ID, int(now.Month()), now.Year())
}

// GetMonthlyUsage implements domain.Service. Period inputs are rejected
// before any store access, including the user lookup.
func (s *Service) GetMonthlyUsage(ctx context.Context, userID string, month, year int) (usagedomain.Summary, error) {
	if err := usagedomain.ValidatePeriod(month, year); err != nil {
		return usagedomain.Summary{}, err
	}

	user, err := s.users.RequireActive(ctx, userID)
	if err != nil {
		return usagedomain.Summary{}, err
	}

	return s.monthSummary(ctx, user.ID, month, year)
}

// GetYearlyUsage implements domain.Service.
func (s *Service) GetYearlyUsage(ctx context.Context, userID string, year int) (usagedomain.YearlySummary, error) {
	if err := usagedomain.ValidateYear(year); err != nil {
		return usagedomain.YearlySummary{}, err
	}

	user, err := s.users.RequireActive(ctx, userID)
	if err != nil {
		return usagedomain.YearlySummary{}, err
	}

	totals, months, err := s.repo.SumYear(ctx, s.db, user.ID, year)
	if err != nil {
		return usagedomain.YearlySummary{}, fmt.Errorf("sum year: %w", err)
	}

	return usagedomain.YearlySummary{
		UserID:          user.ID,
		Year:            year,
		MonthsWithUsage: months,
		Totals:          totals,
	}, nil
}

// GetUsageHistory implements domain.Service.
func (s *Service) GetUsageHistory(ctx context.Context, userID string, limit int) ([]usagedomain.Summary, error) {
	user, err := s.users.RequireActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = 12
	}
	buckets, err := s.repo.ListBuckets(ctx, s.db, user.ID, 0, limit)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}

	return summaries(user.ID, buckets), nil
}

// ListUsageHistory implements domain.Service.
func (s *Service) ListUsageHistory(ctx context.Context, req usagedomain.ListUsageHistoryRequest) (usagedomain.ListUsageHistoryResponse, error) {
	user, err := s.users.RequireActive(ctx, req.UserID)
	if err != nil {
		return usagedomain.ListUsageHistoryResponse{}, err
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 12
	}

	beforeKey := 0
	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return usagedomain.ListUsageHistoryResponse{}, usagedomain.NewValidationError("page_token", "malformed cursor")
		}
		key, err := strconv.Atoi(cursor.Period)
		if err != nil || key <= 0 {
			return usagedomain.ListUsageHistoryResponse{}, usagedomain.NewValidationError("page_token", "malformed cursor")
		}
		beforeKey = key
	}

	// Fetch one extra row so the cursor builder can tell whether another
	// page exists.
	buckets, err := s.repo.ListBuckets(ctx, s.db, user.ID, beforeKey, int(pageSize)+1)
	if err != nil {
		return usagedomain.ListUsageHistoryResponse{}, fmt.Errorf("list buckets: %w", err)
	}

	rows := make([]*usagedomain.UsageMetrics, len(buckets))
	for i := range buckets {
		rows[i] = &buckets[i]
	}
	pageInfo := pagination.BuildCursorPageInfo(rows, pageSize, func(bucket *usagedomain.UsageMetrics) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			Period: strconv.Itoa(bucket.PeriodKey()),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(buckets) > int(pageSize) {
		buckets = buckets[:pageSize]
	}

	resp := usagedomain.ListUsageHistoryResponse{
		History: summaries(user.ID, buckets),
	}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

// GetAggregatedUsageByPlan implements domain.Service. The caller must be an
// active directory user whose role holds the usage_aggregate read policy;
// this gate is independent from the plan-hierarchy check.
func (s *Service) GetAggregatedUsageByPlan(ctx context.Context, callerID, plan string, start, end time.Time) (usagedomain.PlanUsageAggregate, error) {
	caller, err := s.users.RequireActive(ctx, callerID)
	if err != nil {
		return usagedomain.PlanUsageAggregate{}, err
	}
	if err := s.authz.Authorize(ctx, string(caller.Role), authorization.ObjectUsageAggregate, authorization.ActionRead); err != nil {
		if errors.Is(err, authorization.ErrPermissionDenied) {
			return usagedomain.PlanUsageAggregate{}, usagedomain.ErrAdminPermissionRequired
		}
		return usagedomain.PlanUsageAggregate{}, err
	}

	plan = strings.ToLower(strings.TrimSpace(plan))
	if !subscriptiondomain.Plan(plan).Valid() {
		return usagedomain.PlanUsageAggregate{}, usagedomain.NewValidationError("plan", "unknown plan")
	}
	if start.IsZero() || end.IsZero() {
		return usagedomain.PlanUsageAggregate{}, usagedomain.NewValidationError("start", "start and end are required")
	}
	if start.After(end) {
		return usagedomain.PlanUsageAggregate{}, usagedomain.NewValidationError("start", "must not be after end")
	}

	startUTC, endUTC := start.UTC(), end.UTC()
	startKey := usagedomain.PeriodKey(startUTC.Year(), int(startUTC.Month()))
	endKey := usagedomain.PeriodKey(endUTC.Year(), int(endUTC.Month()))

	totals, userCount, err := s.repo.AggregateByPlan(ctx, s.db, plan, startKey, endKey)
	if err != nil {
		return usagedomain.PlanUsageAggregate{}, fmt.Errorf("aggregate by plan: %w", err)
	}

	return usagedomain.PlanUsageAggregate{
		Plan:      plan,
		UserCount: userCount,
		Start:     start,
		End:       end,
		Totals:    totals,
	}, nil
}

func (s *Service) monthSummary(ctx context.Context, userID snowflake.ID, month, year int) (usagedomain.Summary, error) {
	bucket, err := s.repo.FindBucket(ctx, s.db, userID, month, year)
	if err != nil {
		return usagedomain.Summary{}, fmt.Errorf("find bucket: %w", err)
	}
	return summarize(userID, month, year, bucket), nil
}

// summarize maps a stored bucket onto the summary DTO; a nil bucket is the
// valid zero state, not an error.
func summarize(userID snowflake.ID, month, year int, bucket *usagedomain.UsageMetrics) usagedomain.Summary {
	summary := usagedomain.Summary{UserID: userID, Month: month, Year: year}
	if bucket == nil {
		return summary
	}
	summary.Totals = usagedomain.Totals{
		RegionsCreated: bucket.RegionsCreated,
		PlacesCreated:  bucket.PlacesCreated,
		CheckinsCount:  bucket.CheckinsCount,
		ImagesUploaded: bucket.ImagesUploaded,
		StorageUsedMB:  bucket.StorageUsedMB,
		APICallsCount:  bucket.APICallsCount,
	}
	return summary
}

func summaries(userID snowflake.ID, buckets []usagedomain.UsageMetrics) []usagedomain.Summary {
	out := make([]usagedomain.Summary, 0, len(buckets))
	for i := range buckets {
		out = append(out, summarize(userID, buckets[i].Month, buckets[i].Year, &buckets[i]))
	}
	return out
}
