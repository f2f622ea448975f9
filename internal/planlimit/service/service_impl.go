package service

import (
	"context"

	"github.com/roamio/atlas/internal/config"
	"github.com/roamio/atlas/internal/metricspush"
	obsmetrics "github.com/roamio/atlas/internal/observability/metrics"
	planlimitdomain "github.com/roamio/atlas/internal/planlimit/domain"
	subscriptiondomain "github.com/roamio/atlas/internal/subscription/domain"
	usagedomain "github.com/roamio/atlas/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log           *zap.Logger
	Limits        *config.PlanLimitsHolder
	Subscriptions subscriptiondomain.Service
	Usage         usagedomain.Service
	Metrics       *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log           *zap.Logger
	limits        *config.PlanLimitsHolder
	subscriptions subscriptiondomain.Service
	usage         usagedomain.Service
	metrics       *obsmetrics.Metrics
}

func NewService(p Params) planlimitdomain.Service {
	return &Service{
		log:           p.Log.Named("planlimit.service"),
		limits:        p.Limits,
		subscriptions: p.Subscriptions,
		usage:         p.Usage,
		metrics:       p.Metrics,
	}
}

// CheckPlanLimits implements domain.Service.
func (s *Service) CheckPlanLimits(ctx context.Context, userID string) (planlimitdomain.CheckResult, error) {
	// GetSubscription validates the subject first. Users who never
	// subscribed resolve to the free tier, not an error.
	sub, err := s.subscriptions.GetSubscription(ctx, userID)
	if err != nil {
		return planlimitdomain.CheckResult{}, err
	}
	plan := subscriptiondomain.PlanFree
	if sub != nil {
		plan = sub.Plan
	}

	table := s.limits.Get()
	planLimits, ok := table.LimitsFor(string(plan))
	if !ok {
		// A stored plan outside the table caps like free; an unknown tier
		// never unlocks more than the lowest one.
		s.log.Warn("stored plan missing from limit table, capping as free",
			zap.String("user_id", userID),
			zap.String("plan", string(plan)))
		planLimits, _ = table.LimitsFor(string(subscriptiondomain.PlanFree))
	}

	current, err := s.usage.GetCurrentMonthUsage(ctx, userID)
	if err != nil {
		return planlimitdomain.CheckResult{}, err
	}

	limits := planlimitdomain.LimitSetFromConfig(planLimits)
	overages, within := planlimitdomain.Evaluate(limits, current.Totals)

	s.metrics.RecordLimitCheck(ctx, string(plan), within)
	if !within {
		recordBreaches(string(plan), overages)
	}

	return planlimitdomain.CheckResult{
		UserID:       current.UserID,
		Plan:         plan,
		WithinLimits: within,
		CurrentUsage: current.Totals,
		Limits:       limits,
		Overages:     overages,
	}, nil
}

func recordBreaches(plan string, over planlimitdomain.Overages) {
	if over.RegionsCreated > 0 {
		metricspush.RecordLimitBreach(plan, "regions_created")
	}
	if over.PlacesCreated > 0 {
		metricspush.RecordLimitBreach(plan, "places_created")
	}
	if over.StorageMB > 0 {
		metricspush.RecordLimitBreach(plan, "storage_mb")
	}
	if over.APICalls > 0 {
		metricspush.RecordLimitBreach(plan, "api_calls")
	}
}
