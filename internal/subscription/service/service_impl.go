package service

import (
	"context"
	"strings"

	"github.com/roamio/atlas/internal/clock"
	"github.com/roamio/atlas/internal/metricspush"
	obsmetrics "github.com/roamio/atlas/internal/observability/metrics"
	subscriptiondomain "github.com/roamio/atlas/internal/subscription/domain"
	userdomain "github.com/roamio/atlas/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Repo    subscriptiondomain.Repository
	Users   userdomain.Service
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	repo    subscriptiondomain.Repository
	users   userdomain.Service
	metrics *obsmetrics.Metrics
}

func NewService(p Params) subscriptiondomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("subscription.service"),
		clock:   p.Clock,
		repo:    p.Repo,
		users:   p.Users,
		metrics: p.Metrics,
	}
}

// GetSubscription implements domain.Service.
func (s *Service) GetSubscription(ctx context.Context, userID string) (*subscriptiondomain.Subscription, error) {
	user, err := s.users.RequireActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.repo.FindByUserID(ctx, s.db, user.ID)
}

// GetSubscriptionStatus implements domain.Service.
func (s *Service) GetSubscriptionStatus(ctx context.Context, userID string) (subscriptiondomain.StatusView, error) {
	user, err := s.users.RequireActive(ctx, userID)
	if err != nil {
		return subscriptiondomain.StatusView{}, err
	}

	sub, err := s.repo.FindByUserID(ctx, s.db, user.ID)
	if err != nil {
		return subscriptiondomain.StatusView{}, err
	}

	return subscriptiondomain.ResolveStatus(sub, s.clock.Now()), nil
}

// CheckPermission implements domain.Service.
func (s *Service) CheckPermission(ctx context.Context, userID string, required subscriptiondomain.Plan) (bool, error) {
	required = subscriptiondomain.Plan(strings.ToLower(strings.TrimSpace(string(required))))

	// The free tier needs no entitlement: answer before any lookup so even
	// unknown users pass.
	if required == subscriptiondomain.PlanFree {
		s.recordCheck(ctx, required, true)
		return true, nil
	}
	if !required.Valid() {
		return false, subscriptiondomain.ErrInvalidPlan
	}

	user, err := s.users.RequireActive(ctx, userID)
	if err != nil {
		return false, err
	}

	sub, err := s.repo.FindByUserID(ctx, s.db, user.ID)
	if err != nil {
		return false, err
	}

	view := subscriptiondomain.ResolveStatus(sub, s.clock.Now())
	if !view.HasActiveSubscription {
		s.recordCheck(ctx, required, false)
		return false, nil
	}

	entitled := subscriptiondomain.HierarchyLevel(sub.Plan) >= subscriptiondomain.HierarchyLevel(required)
	s.recordCheck(ctx, required, entitled)
	return entitled, nil
}

func (s *Service) recordCheck(ctx context.Context, required subscriptiondomain.Plan, entitled bool) {
	s.metrics.RecordEntitlementCheck(ctx, string(required), entitled)
	metricspush.RecordEntitlementCheck(string(required), entitled)
}
