package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
	apikeydomain "github.com/roamio/atlas/internal/apikey/domain"
	subscriptiondomain "github.com/roamio/atlas/internal/subscription/domain"
	usagedomain "github.com/roamio/atlas/internal/usage/domain"
	userdomain "github.com/roamio/atlas/internal/user/domain"
	"gorm.io/gorm"
)

const (
	demoAPIKeyName   = "local ingest"
	demoAPIKeyPrefix = "ak_live_demo"

	// DemoAPIKey is the published local-development credential. It only
	// exists when SEED_DEMO is on, which must never be the case anywhere
	// real.
	DemoAPIKey = "ak_live_demo_local-dev-secret"
)

// demoAccount describes one seeded directory user with an optional
// subscription and an optional current-month usage bucket.
type demoAccount struct {
	handle  string
	display string
	email   string
	role    userdomain.Role

	plan              subscriptiondomain.Plan
	status            subscriptiondomain.Status
	cancelAtPeriodEnd bool
	periodEnd         time.Time

	usage usagedomain.Totals
}

// demoAccounts covers every state the resolver distinguishes: never
// subscribed, active on each paid tier, trialing, cancelled-with-access,
// and a stale active row the clock expires.
func demoAccounts(now time.Time) []demoAccount {
	return []demoAccount{
		{
			handle:  "demo-free",
			display: "Demo Free",
			email:   "free@demo.roamio.dev",
			role:    userdomain.RoleMember,
			// Over the free region cap, so the limits endpoint has something
			// to flag.
			usage: usagedomain.Totals{RegionsCreated: 4, PlacesCreated: 6, APICallsCount: 120},
		},
		{
			handle:    "demo-standard",
			display:   "Demo Standard",
			email:     "standard@demo.roamio.dev",
			role:      userdomain.RoleMember,
			plan:      subscriptiondomain.PlanStandard,
			status:    subscriptiondomain.StatusActive,
			periodEnd: now.Add(20 * 24 * time.Hour),
			usage:     usagedomain.Totals{RegionsCreated: 8, PlacesCreated: 40, CheckinsCount: 200, StorageUsedMB: 128, APICallsCount: 2400},
		},
		{
			handle:    "demo-premium",
			display:   "Demo Premium",
			email:     "premium@demo.roamio.dev",
			role:      userdomain.RoleMember,
			plan:      subscriptiondomain.PlanPremium,
			status:    subscriptiondomain.StatusActive,
			periodEnd: now.Add(25 * 24 * time.Hour),
			usage:     usagedomain.Totals{RegionsCreated: 60, PlacesCreated: 500, CheckinsCount: 3000, ImagesUploaded: 900, StorageUsedMB: 2048, APICallsCount: 40000},
		},
		{
			handle:    "demo-trial",
			display:   "Demo Trial",
			email:     "trial@demo.roamio.dev",
			role:      userdomain.RoleMember,
			plan:      subscriptiondomain.PlanPremium,
			status:    subscriptiondomain.StatusTrial,
			periodEnd: now.Add(14 * 24 * time.Hour),
			usage:     usagedomain.Totals{RegionsCreated: 1, PlacesCreated: 3},
		},
		{
			handle:            "demo-grace",
			display:           "Demo Grace",
			email:             "grace@demo.roamio.dev",
			role:              userdomain.RoleMember,
			plan:              subscriptiondomain.PlanStandard,
			status:            subscriptiondomain.StatusCancelled,
			cancelAtPeriodEnd: true,
			periodEnd:         now.Add(7 * 24 * time.Hour),
			usage:             usagedomain.Totals{RegionsCreated: 2, PlacesCreated: 15},
		},
		{
			handle:    "demo-lapsed",
			display:   "Demo Lapsed",
			email:     "lapsed@demo.roamio.dev",
			role:      userdomain.RoleMember,
			plan:      subscriptiondomain.PlanPremium,
			status:    subscriptiondomain.StatusActive,
			periodEnd: now.Add(-10 * 24 * time.Hour),
		},
		{
			handle:  "atlas-admin",
			display: "Atlas Admin",
			email:   "admin@demo.roamio.dev",
			role:    userdomain.RoleAdmin,
		},
	}
}

// EnsureDemoData seeds the demo directory. Every entity is looked up before
// it is created, so reseeding on restart is a no-op.
func EnsureDemoData(ctx context.Context, db *gorm.DB, node *snowflake.Node, now time.Time) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	now = now.UTC()

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, acct := range demoAccounts(now) {
			user, err := ensureUserTx(ctx, tx, node, now, acct)
			if err != nil {
				return err
			}
			if acct.plan != "" {
				if err := ensureSubscriptionTx(ctx, tx, node, now, user.ID, acct); err != nil {
					return err
				}
			}
			if acct.usage != (usagedomain.Totals{}) {
				if err := ensureBucketTx(ctx, tx, node, now, user.ID, acct.usage); err != nil {
					return err
				}
			}
		}
		return ensureDemoAPIKeyTx(ctx, tx, node, now)
	})
}

func ensureUserTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, now time.Time, acct demoAccount) (userdomain.User, error) {
	var user userdomain.User
	err := tx.WithContext(ctx).Where("handle = ?", acct.handle).First(&user).Error
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return user, err
	}

	user = userdomain.User{
		ID:          node.Generate(),
		Handle:      acct.handle,
		DisplayName: acct.display,
		Email:       acct.email,
		Role:        acct.role,
		Status:      userdomain.StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.WithContext(ctx).Create(&user).Error; err != nil {
		return user, err
	}
	return user, nil
}

func ensureSubscriptionTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, now time.Time, userID snowflake.ID, acct demoAccount) error {
	var sub subscriptiondomain.Subscription
	err := tx.WithContext(ctx).Where("user_id = ?", userID).First(&sub).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	sub = subscriptiondomain.Subscription{
		ID:                 node.Generate(),
		UserID:             userID,
		Plan:               acct.plan,
		Status:             acct.status,
		CurrentPeriodStart: acct.periodEnd.Add(-30 * 24 * time.Hour),
		CurrentPeriodEnd:   acct.periodEnd,
		CancelAtPeriodEnd:  acct.cancelAtPeriodEnd,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	return tx.WithContext(ctx).Create(&sub).Error
}

func ensureBucketTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, now time.Time, userID snowflake.ID, totals usagedomain.Totals) error {
	month, year := int(now.Month()), now.Year()

	var bucket usagedomain.UsageMetrics
	err := tx.WithContext(ctx).
		Where("user_id = ? AND month = ? AND year = ?", userID, month, year).
		First(&bucket).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	bucket = usagedomain.UsageMetrics{
		ID:             node.Generate(),
		UserID:         userID,
		Month:          month,
		Year:           year,
		RegionsCreated: totals.RegionsCreated,
		PlacesCreated:  totals.PlacesCreated,
		CheckinsCount:  totals.CheckinsCount,
		ImagesUploaded: totals.ImagesUploaded,
		StorageUsedMB:  totals.StorageUsedMB,
		APICallsCount:  totals.APICallsCount,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return tx.WithContext(ctx).Create(&bucket).Error
}

func ensureDemoAPIKeyTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, now time.Time) error {
	var key apikeydomain.APIKey
	err := tx.WithContext(ctx).Where("prefix = ?", demoAPIKeyPrefix).First(&key).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	key = apikeydomain.APIKey{
		ID:        node.Generate(),
		Name:      demoAPIKeyName,
		Prefix:    demoAPIKeyPrefix,
		Hash:      apikeydomain.HashAPIKey(DemoAPIKey),
		Scopes:    pq.StringArray{apikeydomain.ScopeUsageWrite},
		CreatedAt: now,
	}
	return tx.WithContext(ctx).Create(&key).Error
}
