package domain

import (
	"math"
	"time"
)

// StatusView is the effective subscription state at a point in time. It is
// recomputed on every query and never persisted or cached: every flag except
// IsCancelled depends on comparing CurrentPeriodEnd against the clock.
type StatusView struct {
	Subscription *Subscription `json:"subscription"`
	IsActive     bool          `json:"is_active"`
	IsExpired    bool          `json:"is_expired"`
	IsCancelled  bool          `json:"is_cancelled"`
	// HasActiveSubscription is the service-access flag. It is strictly more
	// permissive than IsActive: trials have access without being
	// billing-active. The two must never be collapsed.
	HasActiveSubscription bool `json:"has_active_subscription"`
	DaysUntilExpiry       *int `json:"days_until_expiry"`
}

// ResolveStatus derives the effective state of sub at now. A nil subscription
// resolves to the zero view (all flags false, nil expiry), which is a valid
// answer and not an error.
//
// The clock always beats the stored status field: a row still marked active
// past its period end resolves expired, and a cancellation scheduled for
// period end keeps its access until the period actually lapses.
func ResolveStatus(sub *Subscription, now time.Time) StatusView {
	if sub == nil {
		return StatusView{}
	}

	expired := sub.CurrentPeriodEnd.Before(now)

	// A cancelled row with cancel_at_period_end keeps entitlement until the
	// period lapses; the user is simultaneously cancelled and active.
	graceful := sub.Status == StatusCancelled && sub.CancelAtPeriodEnd

	days := daysUntilExpiry(sub.CurrentPeriodEnd, now)

	return StatusView{
		Subscription:          sub,
		IsExpired:             expired,
		IsCancelled:           sub.Status == StatusCancelled || sub.CancelAtPeriodEnd,
		IsActive:              !expired && (sub.Status == StatusActive || graceful),
		HasActiveSubscription: !expired && (sub.Status == StatusActive || sub.Status == StatusTrial || graceful),
		DaysUntilExpiry:       &days,
	}
}

// daysUntilExpiry rounds up, so a period ending later today reports one day
// left. Past deadlines go negative once a full day has elapsed. Downstream
// displays rely on this rounding; do not switch to floor.
func daysUntilExpiry(periodEnd, now time.Time) int {
	return int(math.Ceil(periodEnd.Sub(now).Hours() / 24))
}
