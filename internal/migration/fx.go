package migration

import (
	apikeydomain "github.com/roamio/atlas/internal/apikey/domain"
	"github.com/roamio/atlas/internal/config"
	subscriptiondomain "github.com/roamio/atlas/internal/subscription/domain"
	usagedomain "github.com/roamio/atlas/internal/usage/domain"
	userdomain "github.com/roamio/atlas/internal/user/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// The dev dialects derive the same schema from the models instead
			// of the versioned files.
			return conn.AutoMigrate(
				&userdomain.User{},
				&subscriptiondomain.Subscription{},
				&usagedomain.UsageMetrics{},
				&usagedomain.UsageEvent{},
				&apikeydomain.APIKey{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
