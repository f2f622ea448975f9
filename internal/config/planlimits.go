package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Limit is a per-metric cap. The config file uses -1 for unlimited count
// metrics; in code the sentinel becomes an explicit variant so quota math
// never compares against magic numbers.
type Limit struct {
	Value     float64 `json:"value"`
	Unlimited bool    `json:"unlimited,omitempty"`
}

func FiniteLimit(v float64) Limit { return Limit{Value: v} }

func UnlimitedLimit() Limit { return Limit{Unlimited: true} }

// Overage reports how far used exceeds the cap. Zero when within the cap
// or when the cap is unlimited.
func (l Limit) Overage(used float64) float64 {
	if l.Unlimited || used <= l.Value {
		return 0
	}
	return used - l.Value
}

// PlanLimits holds the caps for one plan tier. Storage and API-call caps
// are always finite, even for premium.
type PlanLimits struct {
	RegionsCreated Limit `json:"regions_created"`
	PlacesCreated  Limit `json:"places_created"`
	StorageMB      Limit `json:"storage_mb"`
	APICalls       Limit `json:"api_calls"`
}

// PlanLimitsConfig is the versioned plan→limits table. Limits are a business
// lever, so they live in configuration rather than code.
type PlanLimitsConfig struct {
	Version int                   `json:"version"`
	Plans   map[string]PlanLimits `json:"plans"`
}

// LimitsFor returns the caps for a plan key ("free", "standard", "premium").
func (c PlanLimitsConfig) LimitsFor(plan string) (PlanLimits, bool) {
	limits, ok := c.Plans[plan]
	return limits, ok
}

func DefaultPlanLimits() PlanLimitsConfig {
	return PlanLimitsConfig{
		Version: 1,
		Plans: map[string]PlanLimits{
			"free": {
				RegionsCreated: FiniteLimit(3),
				PlacesCreated:  FiniteLimit(10),
				StorageMB:      FiniteLimit(100),
				APICalls:       FiniteLimit(1000),
			},
			"standard": {
				RegionsCreated: FiniteLimit(20),
				PlacesCreated:  FiniteLimit(100),
				StorageMB:      FiniteLimit(1000),
				APICalls:       FiniteLimit(10000),
			},
			"premium": {
				RegionsCreated: UnlimitedLimit(),
				PlacesCreated:  UnlimitedLimit(),
				StorageMB:      FiniteLimit(10000),
				APICalls:       FiniteLimit(100000),
			},
		},
	}
}

type planLimitsFile struct {
	Version int                        `mapstructure:"version"`
	Plans   map[string]planLimitsEntry `mapstructure:"plans"`
}

type planLimitsEntry struct {
	RegionsCreated float64 `mapstructure:"regions_created"`
	PlacesCreated  float64 `mapstructure:"places_created"`
	StorageMB      float64 `mapstructure:"storage_mb"`
	APICalls       float64 `mapstructure:"api_calls"`
}

type PlanLimitsHolder struct {
	current atomic.Value // holds PlanLimitsConfig
}

func NewPlanLimitsHolder() (*PlanLimitsHolder, error) {
	v := viper.New()

	v.SetConfigName("planlimits")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/atlas/config") // Volume-mounted config
	v.AddConfigPath("/etc/atlas")            // System config
	v.AddConfigPath(".")                     // Current directory (dev mode)

	v.SetEnvPrefix("ATLAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &PlanLimitsHolder{}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// no config file: serve the built-in table
		holder.current.Store(DefaultPlanLimits())
		return holder, nil
	}

	cfg, err := decodePlanLimits(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodePlanLimits(v)
		if err != nil {
			log.Printf("[planlimits] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[planlimits] reloaded version %d from %s", updated.Version, e.Name)
	})

	return holder, nil
}

func (h *PlanLimitsHolder) Get() PlanLimitsConfig {
	return h.current.Load().(PlanLimitsConfig)
}

func decodePlanLimits(v *viper.Viper) (PlanLimitsConfig, error) {
	var raw planLimitsFile
	if err := v.UnmarshalKey("plan_limits", &raw); err != nil {
		return PlanLimitsConfig{}, err
	}
	return raw.typed()
}

var knownPlans = []string{"free", "standard", "premium"}

func (f planLimitsFile) typed() (PlanLimitsConfig, error) {
	if f.Version <= 0 {
		return PlanLimitsConfig{}, errors.New("plan_limits.version must be positive")
	}

	out := PlanLimitsConfig{Version: f.Version, Plans: make(map[string]PlanLimits, len(knownPlans))}
	for _, plan := range knownPlans {
		entry, ok := f.Plans[plan]
		if !ok {
			return PlanLimitsConfig{}, fmt.Errorf("plan_limits.plans.%s is required", plan)
		}
		limits, err := entry.typed()
		if err != nil {
			return PlanLimitsConfig{}, fmt.Errorf("plan_limits.plans.%s: %w", plan, err)
		}
		out.Plans[plan] = limits
	}
	for plan := range f.Plans {
		if _, ok := out.Plans[plan]; !ok {
			return PlanLimitsConfig{}, fmt.Errorf("plan_limits.plans.%s is not a known plan", plan)
		}
	}
	return out, nil
}

func (e planLimitsEntry) typed() (PlanLimits, error) {
	regions, err := countLimit("regions_created", e.RegionsCreated)
	if err != nil {
		return PlanLimits{}, err
	}
	places, err := countLimit("places_created", e.PlacesCreated)
	if err != nil {
		return PlanLimits{}, err
	}
	storage, err := finiteCap("storage_mb", e.StorageMB)
	if err != nil {
		return PlanLimits{}, err
	}
	apiCalls, err := finiteCap("api_calls", e.APICalls)
	if err != nil {
		return PlanLimits{}, err
	}
	return PlanLimits{
		RegionsCreated: regions,
		PlacesCreated:  places,
		StorageMB:      storage,
		APICalls:       apiCalls,
	}, nil
}

func countLimit(name string, v float64) (Limit, error) {
	if v == -1 {
		return UnlimitedLimit(), nil
	}
	if v < 0 {
		return Limit{}, fmt.Errorf("%s must be -1 (unlimited) or non-negative, got %v", name, v)
	}
	return FiniteLimit(v), nil
}

func finiteCap(name string, v float64) (Limit, error) {
	if v <= 0 {
		return Limit{}, fmt.Errorf("%s must be a positive finite cap, got %v", name, v)
	}
	return FiniteLimit(v), nil
}
