package seed

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/roamio/atlas/internal/clock"
	"github.com/roamio/atlas/internal/config"
	"github.com/roamio/atlas/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Cfg     config.Config
	Log     *zap.Logger
	Clock   clock.Clock
	GenID   *snowflake.Node
	Limiter *ratelimit.UsageIngestLimiter
}

// Module seeds demo fixtures on startup. It must be registered after the
// migration module so the schema exists.
var Module = fx.Module("seed",
	fx.Invoke(Run),
)

// Run is a no-op unless SEED_DEMO is enabled.
func Run(p Params) error {
	if !p.Cfg.SeedDemo {
		return nil
	}

	ctx := context.Background()

	token, ok, err := p.Limiter.TrySeedLock(ctx)
	if err != nil {
		return err
	}
	if !ok {
		p.Log.Info("another replica holds the seed lock, skipping demo seed")
		return nil
	}
	defer func() {
		if err := p.Limiter.ReleaseSeedLock(ctx, token); err != nil {
			p.Log.Warn("failed to release seed lock", zap.Error(err))
		}
	}()

	if err := EnsureDemoData(ctx, p.DB, p.GenID, p.Clock.Now()); err != nil {
		return err
	}

	p.Log.Info("demo data seeded", zap.String("api_key", DemoAPIKey))
	return nil
}
