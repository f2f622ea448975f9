package metricspush

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/roamio/atlas/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("metricspush",
	fx.Provide(func() *prometheus.Registry {
		return prometheus.NewRegistry()
	}),
	fx.Provide(NewPusher),
	fx.Invoke(Register),
)

var registerOnce sync.Once

// Register starts the push worker. Failures are logged and never block serving.
func Register(lc fx.Lifecycle, cfg config.Config, registry *prometheus.Registry, pusher Pusher, db *gorm.DB, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pusher == nil {
		return
	}

	registerOnce.Do(func() {
		rec := &recorder{metrics: newMetrics(registry)}
		setRecorder(rec)

		interval := time.Duration(cfg.Metrics.IntervalSeconds) * time.Second
		if interval <= 0 {
			interval = 30 * time.Minute
		}

		ctx, cancel := context.WithCancel(context.Background())
		doneCh := make(chan struct{})
		var errorOnce atomic.Bool

		pushOnce := func() {
			updateSystemMetrics(rec)
			updateSubscriptionCounts(ctx, rec, db)
			pushCtx, pushCancel := context.WithTimeout(ctx, defaultPushTimeout)
			defer pushCancel()
			if err := pusher.Push(pushCtx, registry); err != nil {
				if errorOnce.CompareAndSwap(false, true) {
					logger.Warn("metrics push failed", zap.Error(err))
				}
				return
			}
			errorOnce.Store(false)
		}

		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				logger.Info("starting metrics push worker", zap.Duration("interval", interval))
				go func() {
					defer close(doneCh)
					ticker := time.NewTicker(interval)
					defer ticker.Stop()

					pushOnce()
					for {
						select {
						case <-ticker.C:
							pushOnce()
						case <-ctx.Done():
							logger.Info("stopping metrics push worker")
							return
						}
					}
				}()
				return nil
			},
			OnStop: func(stopCtx context.Context) error {
				cancel()
				select {
				case <-doneCh:
					return nil
				case <-stopCtx.Done():
					return stopCtx.Err()
				}
			},
		})
	})
}

func updateSystemMetrics(rec *recorder) {
	if rec == nil {
		return
	}
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	rec.setProcessMemory(m.Sys)
}

func updateSubscriptionCounts(ctx context.Context, rec *recorder, db *gorm.DB) {
	if rec == nil || db == nil {
		return
	}

	var counts []struct {
		Plan  string
		Count int
	}
	err := db.WithContext(ctx).
		Table("subscriptions").
		Select("plan, COUNT(*) AS count").
		Where("status IN ?", []string{"active", "trial"}).
		Group("plan").
		Scan(&counts).Error
	if err != nil {
		return
	}

	for _, row := range counts {
		rec.UpdateActiveSubscriptions(row.Plan, row.Count)
	}
}
