// Package domain contains the subscription model, the plan hierarchy and the
// clock-driven status resolver.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Plan identifies a Roamio subscription tier.
type Plan string

const (
	PlanFree     Plan = "free"
	PlanStandard Plan = "standard"
	PlanPremium  Plan = "premium"
)

// hierarchy orders the tiers. Higher tiers satisfy every requirement below
// them; the ordering is total and never branches per feature.
var hierarchy = map[Plan]int{
	PlanFree:     0,
	PlanStandard: 1,
	PlanPremium:  2,
}

// HierarchyLevel returns the rank of a plan within the fixed ordering
// free < standard < premium. Unknown plans rank below free so a corrupted
// row can never satisfy a paid requirement.
func HierarchyLevel(p Plan) int {
	level, ok := hierarchy[p]
	if !ok {
		return -1
	}
	return level
}

// Valid reports whether p is one of the known tiers.
func (p Plan) Valid() bool {
	_, ok := hierarchy[p]
	return ok
}

// Status is the stored lifecycle state of a subscription. Stored values can
// lag reality; ResolveStatus derives the effective state from the clock.
type Status string

const (
	StatusTrial     Status = "trial"
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Subscription is one user's tier assignment, owned by the billing flows
// upstream. Atlas reads these rows and derives state; it never mutates them
// outside of seeding.
type Subscription struct {
	ID                 snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID             snowflake.ID `gorm:"not null;uniqueIndex" json:"user_id"`
	Plan               Plan         `gorm:"type:text;not null" json:"plan"`
	Status             Status       `gorm:"type:text;not null" json:"status"`
	CurrentPeriodStart time.Time    `gorm:"not null" json:"current_period_start"`
	CurrentPeriodEnd   time.Time    `gorm:"not null" json:"current_period_end"`
	CancelAtPeriodEnd  bool         `gorm:"not null;default:false" json:"cancel_at_period_end"`
	CreatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }
