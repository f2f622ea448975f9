package domain

import (
	"encoding/json"
	"testing"

	"github.com/roamio/atlas/internal/config"
	usagedomain "github.com/roamio/atlas/internal/usage/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	standard := LimitSetFromConfig(config.PlanLimits{
		RegionsCreated: config.FiniteLimit(20),
		PlacesCreated:  config.FiniteLimit(100),
		StorageMB:      config.FiniteLimit(1000),
		APICalls:       config.FiniteLimit(10000),
	})
	premium := LimitSetFromConfig(config.PlanLimits{
		RegionsCreated: config.UnlimitedLimit(),
		PlacesCreated:  config.UnlimitedLimit(),
		StorageMB:      config.FiniteLimit(10000),
		APICalls:       config.FiniteLimit(100000),
	})

	tests := []struct {
		name       string
		limits     LimitSet
		usage      usagedomain.Totals
		wantOver   Overages
		wantWithin bool
	}{
		{
			name:       "zero usage is within limits",
			limits:     standard,
			wantWithin: true,
		},
		{
			name:       "exactly at the cap is not overage",
			limits:     standard,
			usage:      usagedomain.Totals{RegionsCreated: 20, PlacesCreated: 100},
			wantWithin: true,
		},
		{
			name:     "regions five over the standard cap",
			limits:   standard,
			usage:    usagedomain.Totals{RegionsCreated: 25},
			wantOver: Overages{RegionsCreated: 5},
		},
		{
			name:     "fractional storage overage survives",
			limits:   standard,
			usage:    usagedomain.Totals{StorageUsedMB: 1000.5},
			wantOver: Overages{StorageMB: 0.5},
		},
		{
			name:       "unlimited counts never overage",
			limits:     premium,
			usage:      usagedomain.Totals{RegionsCreated: 1_000_000, PlacesCreated: 1_000_000},
			wantWithin: true,
		},
		{
			name:     "premium storage cap stays finite",
			limits:   premium,
			usage:    usagedomain.Totals{StorageUsedMB: 10500},
			wantOver: Overages{StorageMB: 500},
		},
		{
			name:       "uncapped metrics do not participate",
			limits:     standard,
			usage:      usagedomain.Totals{CheckinsCount: 1_000_000, ImagesUploaded: 1_000_000},
			wantWithin: true,
		},
		{
			name:   "multiple metrics overage together",
			limits: standard,
			usage: usagedomain.Totals{
				RegionsCreated: 22,
				PlacesCreated:  103,
				APICallsCount:  10010,
			},
			wantOver: Overages{RegionsCreated: 2, PlacesCreated: 3, APICalls: 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			over, within := Evaluate(tt.limits, tt.usage)
			assert.Equal(t, tt.wantOver, over)
			assert.Equal(t, tt.wantWithin, within)
		})
	}
}

func TestMetricLimitWireShape(t *testing.T) {
	unlimited, err := json.Marshal(LimitSetFromConfig(config.PlanLimits{
		RegionsCreated: config.UnlimitedLimit(),
		PlacesCreated:  config.UnlimitedLimit(),
		StorageMB:      config.FiniteLimit(10000),
		APICalls:       config.FiniteLimit(100000),
	}).RegionsCreated)
	require.NoError(t, err)
	assert.JSONEq(t, `{"limit": null, "unlimited": true}`, string(unlimited))

	finite, err := json.Marshal(LimitSetFromConfig(config.PlanLimits{
		RegionsCreated: config.FiniteLimit(20),
		PlacesCreated:  config.FiniteLimit(100),
		StorageMB:      config.FiniteLimit(1000),
		APICalls:       config.FiniteLimit(10000),
	}).RegionsCreated)
	require.NoError(t, err)
	assert.JSONEq(t, `{"limit": 20, "unlimited": false}`, string(finite))
}
