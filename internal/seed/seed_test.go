package seed

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	apikeydomain "github.com/roamio/atlas/internal/apikey/domain"
	subscriptiondomain "github.com/roamio/atlas/internal/subscription/domain"
	usagedomain "github.com/roamio/atlas/internal/usage/domain"
	userdomain "github.com/roamio/atlas/internal/user/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var seedNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func setupSeedDB(t *testing.T) (*gorm.DB, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	require.NoError(t, db.AutoMigrate(
		&userdomain.User{},
		&subscriptiondomain.Subscription{},
		&usagedomain.UsageMetrics{},
		&usagedomain.UsageEvent{},
		&apikeydomain.APIKey{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return db, node
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestEnsureDemoDataIdempotent(t *testing.T) {
	db, node := setupSeedDB(t)
	ctx := context.Background()

	require.NoError(t, EnsureDemoData(ctx, db, node, seedNow))
	require.NoError(t, EnsureDemoData(ctx, db, node, seedNow))

	assert.Equal(t, int64(len(demoAccounts(seedNow))), countRows(t, db, &userdomain.User{}))
	assert.Equal(t, int64(5), countRows(t, db, &subscriptiondomain.Subscription{}))
	assert.Equal(t, int64(5), countRows(t, db, &usagedomain.UsageMetrics{}))
	assert.Equal(t, int64(1), countRows(t, db, &apikeydomain.APIKey{}))

	var admin userdomain.User
	require.NoError(t, db.Where("handle = ?", "atlas-admin").First(&admin).Error)
	assert.Equal(t, userdomain.RoleAdmin, admin.Role)
	assert.Equal(t, userdomain.StatusActive, admin.Status)
}

func TestEnsureDemoDataCoversResolverStates(t *testing.T) {
	db, node := setupSeedDB(t)
	require.NoError(t, EnsureDemoData(context.Background(), db, node, seedNow))

	var free userdomain.User
	require.NoError(t, db.Where("handle = ?", "demo-free").First(&free).Error)
	var freeSubs int64
	require.NoError(t, db.Model(&subscriptiondomain.Subscription{}).Where("user_id = ?", free.ID).Count(&freeSubs).Error)
	assert.Zero(t, freeSubs, "the free account must rely on the implicit tier")

	var trial userdomain.User
	require.NoError(t, db.Where("handle = ?", "demo-trial").First(&trial).Error)
	var trialSub subscriptiondomain.Subscription
	require.NoError(t, db.Where("user_id = ?", trial.ID).First(&trialSub).Error)
	assert.Equal(t, subscriptiondomain.StatusTrial, trialSub.Status)
	assert.True(t, trialSub.CurrentPeriodEnd.After(seedNow))

	var grace userdomain.User
	require.NoError(t, db.Where("handle = ?", "demo-grace").First(&grace).Error)
	var graceSub subscriptiondomain.Subscription
	require.NoError(t, db.Where("user_id = ?", grace.ID).First(&graceSub).Error)
	assert.Equal(t, subscriptiondomain.StatusCancelled, graceSub.Status)
	assert.True(t, graceSub.CancelAtPeriodEnd)
	assert.True(t, graceSub.CurrentPeriodEnd.After(seedNow))

	var lapsed userdomain.User
	require.NoError(t, db.Where("handle = ?", "demo-lapsed").First(&lapsed).Error)
	var lapsedSub subscriptiondomain.Subscription
	require.NoError(t, db.Where("user_id = ?", lapsed.ID).First(&lapsedSub).Error)
	assert.Equal(t, subscriptiondomain.StatusActive, lapsedSub.Status, "stored status lags; the clock decides")
	assert.True(t, lapsedSub.CurrentPeriodEnd.Before(seedNow))
}

func TestEnsureDemoDataPublishesVerifiableKey(t *testing.T) {
	db, node := setupSeedDB(t)
	require.NoError(t, EnsureDemoData(context.Background(), db, node, seedNow))

	var key apikeydomain.APIKey
	require.NoError(t, db.Where("prefix = ?", demoAPIKeyPrefix).First(&key).Error)

	sep := strings.LastIndex(DemoAPIKey, "_")
	require.Positive(t, sep)
	assert.Equal(t, key.Prefix, DemoAPIKey[:sep])
	assert.Equal(t, apikeydomain.HashAPIKey(DemoAPIKey), key.Hash)
	assert.Contains(t, []string(key.Scopes), apikeydomain.ScopeUsageWrite)
	assert.Nil(t, key.RevokedAt)
}
