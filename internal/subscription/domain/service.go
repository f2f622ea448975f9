package domain

import (
	"context"
	"errors"
)

//go:generate mockgen -source=service.go -destination=./mocks/mock_service.go -package=mocks
type Service interface {
	// GetSubscription returns the user's subscription row, or nil when the
	// user has never subscribed. Absence is not an error.
	GetSubscription(ctx context.Context, userID string) (*Subscription, error)
	// GetSubscriptionStatus resolves the effective state at the injected
	// clock's now. Users without a row get the zero view.
	GetSubscriptionStatus(ctx context.Context, userID string) (StatusView, error)
	// CheckPermission reports whether the user may perform actions gated at
	// required. free is always allowed, trials entitle at their assigned
	// tier, and an expired subscription entitles nothing. Not entitled is
	// (false, nil); only lookup failures are errors.
	CheckPermission(ctx context.Context, userID string, required Plan) (bool, error)
}

var (
	ErrInvalidPlan = errors.New("invalid_plan")
)
