// Package domain defines the plan-limit wire shapes and the pure overage
// math the evaluator runs on them.
package domain

import (
	"github.com/bwmarrin/snowflake"
	"github.com/roamio/atlas/internal/config"
	subscriptiondomain "github.com/roamio/atlas/internal/subscription/domain"
	usagedomain "github.com/roamio/atlas/internal/usage/domain"
)

// MetricLimit is one cap on the wire: a finite value or an explicit
// unlimited marker. The -1 sentinel exists only in the config file and never
// reaches this type.
type MetricLimit struct {
	Limit     *float64 `json:"limit"`
	Unlimited bool     `json:"unlimited"`
}

func metricLimit(l config.Limit) MetricLimit {
	if l.Unlimited {
		return MetricLimit{Unlimited: true}
	}
	v := l.Value
	return MetricLimit{Limit: &v}
}

// LimitSet carries the four capped metrics of one plan. Check-ins and image
// counts are metered but never capped, so they have no slot here.
type LimitSet struct {
	RegionsCreated MetricLimit `json:"regions_created"`
	PlacesCreated  MetricLimit `json:"places_created"`
	StorageMB      MetricLimit `json:"storage_mb"`
	APICalls       MetricLimit `json:"api_calls"`
}

// LimitSetFromConfig translates one plan's config entry to the wire shape.
func LimitSetFromConfig(l config.PlanLimits) LimitSet {
	return LimitSet{
		RegionsCreated: metricLimit(l.RegionsCreated),
		PlacesCreated:  metricLimit(l.PlacesCreated),
		StorageMB:      metricLimit(l.StorageMB),
		APICalls:       metricLimit(l.APICalls),
	}
}

// Overages reports how far usage exceeds each cap. Zero means within the cap
// or uncapped.
type Overages struct {
	RegionsCreated float64 `json:"regions_created"`
	PlacesCreated  float64 `json:"places_created"`
	StorageMB      float64 `json:"storage_mb"`
	APICalls       float64 `json:"api_calls"`
}

// CheckResult is the advisory verdict for one user at evaluation time. It
// carries everything a caller needs to render a quota view; it promises
// nothing about the moment after it is computed.
type CheckResult struct {
	UserID       snowflake.ID            `json:"user_id"`
	Plan         subscriptiondomain.Plan `json:"plan"`
	WithinLimits bool                    `json:"within_limits"`
	CurrentUsage usagedomain.Totals      `json:"current_usage"`
	Limits       LimitSet                `json:"limits"`
	Overages     Overages                `json:"overages"`
}
