package domain

import (
	usagedomain "github.com/roamio/atlas/internal/usage/domain"
)

// overage is the amount by which used exceeds the cap. Unlimited caps never
// produce overage, whatever the usage magnitude.
func overage(limit MetricLimit, used float64) float64 {
	if limit.Unlimited || limit.Limit == nil {
		return 0
	}
	if used <= *limit.Limit {
		return 0
	}
	return used - *limit.Limit
}

// Evaluate computes per-metric overage and the within-limits verdict. Pure in
// its two inputs so it stays callable without a service or a store.
func Evaluate(limits LimitSet, usage usagedomain.Totals) (Overages, bool) {
	over := Overages{
		RegionsCreated: overage(limits.RegionsCreated, float64(usage.RegionsCreated)),
		PlacesCreated:  overage(limits.PlacesCreated, float64(usage.PlacesCreated)),
		StorageMB:      overage(limits.StorageMB, usage.StorageUsedMB),
		APICalls:       overage(limits.APICalls, float64(usage.APICallsCount)),
	}
	return over, over == Overages{}
}
