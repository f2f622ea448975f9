package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/golang/mock/gomock"
	"github.com/roamio/atlas/internal/clock"
	subscriptiondomain "github.com/roamio/atlas/internal/subscription/domain"
	subscriptionrepo "github.com/roamio/atlas/internal/subscription/repository"
	userdomain "github.com/roamio/atlas/internal/user/domain"
	usermocks "github.com/roamio/atlas/internal/user/domain/mocks"
	userrepo "github.com/roamio/atlas/internal/user/repository"
	userservice "github.com/roamio/atlas/internal/user/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

type subscriptionFixture struct {
	svc   subscriptiondomain.Service
	users userdomain.Service
	db    *gorm.DB
	clock *clock.FakeClock
	node  *snowflake.Node
}

func setupSubscriptionService(t *testing.T) subscriptionFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	prepareSubscriptionSchema(t, db)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(testNow)

	users := userservice.NewService(userservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  userrepo.Provide(),
	})

	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: fake,
		Repo:  subscriptionrepo.Provide(),
		Users: users,
	})

	return subscriptionFixture{svc: svc, users: users, db: db, clock: fake, node: node}
}

func prepareSubscriptionSchema(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Exec(`CREATE TABLE users (
		id BIGINT PRIMARY KEY,
		handle TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		email TEXT NOT NULL,
		role TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`).Error)
	require.NoError(t, db.Exec(`CREATE TABLE subscriptions (
		id BIGINT PRIMARY KEY,
		user_id BIGINT NOT NULL UNIQUE,
		plan TEXT NOT NULL,
		status TEXT NOT NULL,
		current_period_start DATETIME NOT NULL,
		current_period_end DATETIME NOT NULL,
		cancel_at_period_end BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`).Error)
}

func createTestUser(t *testing.T, users userdomain.Service, name string) *userdomain.User {
	t.Helper()
	user, err := users.Create(context.Background(), userdomain.CreateUserRequest{
		DisplayName: name,
		Email:       fmt.Sprintf("%s@roamio.test", name),
	})
	require.NoError(t, err)
	return user
}

func insertSubscription(t *testing.T, f subscriptionFixture, userID snowflake.ID, plan subscriptiondomain.Plan, status subscriptiondomain.Status, periodEnd time.Time, cancelAtEnd bool) {
	t.Helper()
	sub := &subscriptiondomain.Subscription{
		ID:                 f.node.Generate(),
		UserID:             userID,
		Plan:               plan,
		Status:             status,
		CurrentPeriodStart: periodEnd.Add(-30 * 24 * time.Hour),
		CurrentPeriodEnd:   periodEnd,
		CancelAtPeriodEnd:  cancelAtEnd,
		CreatedAt:          testNow,
		UpdatedAt:          testNow,
	}
	require.NoError(t, subscriptionrepo.Provide().Insert(context.Background(), f.db, sub))
}

func deactivateUser(t *testing.T, db *gorm.DB, userID snowflake.ID) {
	t.Helper()
	require.NoError(t, db.Exec(`UPDATE users SET status = ? WHERE id = ?`, userdomain.StatusInactive, userID).Error)
}

func TestCheckPermissionFreeSkipsAllLookups(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// No expectations: any directory call fails the test. The db and repo
	// are nil on purpose; touching them would panic.
	users := usermocks.NewMockService(ctrl)

	svc := NewService(Params{
		Log:   zap.NewNop(),
		Clock: clock.NewFakeClock(testNow),
		Users: users,
	})

	entitled, err := svc.CheckPermission(context.Background(), "not-even-an-id", subscriptiondomain.PlanFree)
	require.NoError(t, err)
	assert.True(t, entitled)
}

func TestCheckPermissionHierarchy(t *testing.T) {
	f := setupSubscriptionService(t)
	ctx := context.Background()

	premium := createTestUser(t, f.users, "premium-explorer")
	insertSubscription(t, f, premium.ID, subscriptiondomain.PlanPremium, subscriptiondomain.StatusActive, testNow.Add(20*24*time.Hour), false)

	standard := createTestUser(t, f.users, "standard-scout")
	insertSubscription(t, f, standard.ID, subscriptiondomain.PlanStandard, subscriptiondomain.StatusActive, testNow.Add(20*24*time.Hour), false)

	nosub := createTestUser(t, f.users, "plain-wanderer")

	for _, plan := range []subscriptiondomain.Plan{subscriptiondomain.PlanFree, subscriptiondomain.PlanStandard, subscriptiondomain.PlanPremium} {
		entitled, err := f.svc.CheckPermission(ctx, premium.ID.String(), plan)
		require.NoError(t, err)
		assert.True(t, entitled, "premium should satisfy %s", plan)
	}

	entitled, err := f.svc.CheckPermission(ctx, standard.ID.String(), subscriptiondomain.PlanStandard)
	require.NoError(t, err)
	assert.True(t, entitled)

	entitled, err = f.svc.CheckPermission(ctx, standard.ID.String(), subscriptiondomain.PlanPremium)
	require.NoError(t, err)
	assert.False(t, entitled, "standard must not satisfy premium")

	entitled, err = f.svc.CheckPermission(ctx, nosub.ID.String(), subscriptiondomain.PlanStandard)
	require.NoError(t, err)
	assert.False(t, entitled, "no subscription row means no paid entitlement")

	entitled, err = f.svc.CheckPermission(ctx, nosub.ID.String(), subscriptiondomain.PlanFree)
	require.NoError(t, err)
	assert.True(t, entitled)
}

func TestCheckPermissionTrialEntitlesAtItsTier(t *testing.T) {
	f := setupSubscriptionService(t)
	ctx := context.Background()

	user := createTestUser(t, f.users, "trial-scout")
	insertSubscription(t, f, user.ID, subscriptiondomain.PlanStandard, subscriptiondomain.StatusTrial, testNow.Add(7*24*time.Hour), false)

	entitled, err := f.svc.CheckPermission(ctx, user.ID.String(), subscriptiondomain.PlanStandard)
	require.NoError(t, err)
	assert.True(t, entitled)

	entitled, err = f.svc.CheckPermission(ctx, user.ID.String(), subscriptiondomain.PlanPremium)
	require.NoError(t, err)
	assert.False(t, entitled)

	view, err := f.svc.GetSubscriptionStatus(ctx, user.ID.String())
	require.NoError(t, err)
	assert.False(t, view.IsActive, "trial is not billing-active")
	assert.True(t, view.HasActiveSubscription, "trial still has service access")
}

func TestCheckPermissionStaleActiveRowExpires(t *testing.T) {
	f := setupSubscriptionService(t)
	ctx := context.Background()

	user := createTestUser(t, f.users, "lapsed-ranger")
	insertSubscription(t, f, user.ID, subscriptiondomain.PlanPremium, subscriptiondomain.StatusActive, testNow.Add(-time.Hour), false)

	entitled, err := f.svc.CheckPermission(ctx, user.ID.String(), subscriptiondomain.PlanStandard)
	require.NoError(t, err)
	assert.False(t, entitled)

	view, err := f.svc.GetSubscriptionStatus(ctx, user.ID.String())
	require.NoError(t, err)
	assert.True(t, view.IsExpired)
	assert.False(t, view.IsActive)
	assert.False(t, view.HasActiveSubscription)
}

func TestCheckPermissionEntitlementReturnsWithClock(t *testing.T) {
	f := setupSubscriptionService(t)
	ctx := context.Background()

	user := createTestUser(t, f.users, "expiring-scout")
	insertSubscription(t, f, user.ID, subscriptiondomain.PlanStandard, subscriptiondomain.StatusActive, testNow.Add(48*time.Hour), false)

	entitled, err := f.svc.CheckPermission(ctx, user.ID.String(), subscriptiondomain.PlanStandard)
	require.NoError(t, err)
	assert.True(t, entitled)

	f.clock.Advance(72 * time.Hour)

	entitled, err = f.svc.CheckPermission(ctx, user.ID.String(), subscriptiondomain.PlanStandard)
	require.NoError(t, err)
	assert.False(t, entitled, "entitlement must lapse once the period end passes")
}

func TestCheckPermissionUserValidation(t *testing.T) {
	f := setupSubscriptionService(t)
	ctx := context.Background()

	_, err := f.svc.CheckPermission(ctx, f.node.Generate().String(), subscriptiondomain.PlanStandard)
	assert.ErrorIs(t, err, userdomain.ErrUserNotFound)

	inactive := createTestUser(t, f.users, "benched-scout")
	deactivateUser(t, f.db, inactive.ID)
	_, err = f.svc.CheckPermission(ctx, inactive.ID.String(), subscriptiondomain.PlanStandard)
	assert.ErrorIs(t, err, userdomain.ErrUserInactive)

	active := createTestUser(t, f.users, "present-scout")
	_, err = f.svc.CheckPermission(ctx, active.ID.String(), subscriptiondomain.Plan("enterprise"))
	assert.ErrorIs(t, err, subscriptiondomain.ErrInvalidPlan)
}

func TestGetSubscriptionAbsenceIsNotAnError(t *testing.T) {
	f := setupSubscriptionService(t)
	ctx := context.Background()

	user := createTestUser(t, f.users, "fresh-wanderer")

	sub, err := f.svc.GetSubscription(ctx, user.ID.String())
	require.NoError(t, err)
	assert.Nil(t, sub)

	view, err := f.svc.GetSubscriptionStatus(ctx, user.ID.String())
	require.NoError(t, err)
	assert.Nil(t, view.Subscription)
	assert.False(t, view.IsActive)
	assert.False(t, view.IsExpired)
	assert.False(t, view.IsCancelled)
	assert.False(t, view.HasActiveSubscription)
	assert.Nil(t, view.DaysUntilExpiry)
}

func TestGetSubscriptionStatusCancelAtPeriodEnd(t *testing.T) {
	f := setupSubscriptionService(t)
	ctx := context.Background()

	user := createTestUser(t, f.users, "leaving-ranger")
	insertSubscription(t, f, user.ID, subscriptiondomain.PlanStandard, subscriptiondomain.StatusCancelled, testNow.Add(15*24*time.Hour), true)

	view, err := f.svc.GetSubscriptionStatus(ctx, user.ID.String())
	require.NoError(t, err)
	assert.True(t, view.IsActive)
	assert.True(t, view.IsCancelled)
	assert.True(t, view.HasActiveSubscription)
	assert.False(t, view.IsExpired)
	require.NotNil(t, view.DaysUntilExpiry)
	assert.Equal(t, 15, *view.DaysUntilExpiry)

	entitled, err := f.svc.CheckPermission(ctx, user.ID.String(), subscriptiondomain.PlanStandard)
	require.NoError(t, err)
	assert.True(t, entitled, "still usable until period end")
}

func TestGetSubscriptionReturnsStoredRow(t *testing.T) {
	f := setupSubscriptionService(t)
	ctx := context.Background()

	user := createTestUser(t, f.users, "settled-scout")
	insertSubscription(t, f, user.ID, subscriptiondomain.PlanStandard, subscriptiondomain.StatusActive, testNow.Add(10*24*time.Hour), false)

	sub, err := f.svc.GetSubscription(ctx, user.ID.String())
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, user.ID, sub.UserID)
	assert.Equal(t, subscriptiondomain.PlanStandard, sub.Plan)
	assert.Equal(t, subscriptiondomain.StatusActive, sub.Status)
}
