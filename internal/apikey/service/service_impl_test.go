package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	apikeydomain "github.com/roamio/atlas/internal/apikey/domain"
	apikeyrepo "github.com/roamio/atlas/internal/apikey/repository"
	"github.com/roamio/atlas/internal/authorization"
	"github.com/roamio/atlas/internal/clock"
	userdomain "github.com/roamio/atlas/internal/user/domain"
	userrepo "github.com/roamio/atlas/internal/user/repository"
	userservice "github.com/roamio/atlas/internal/user/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

type apikeyFixture struct {
	svc   apikeydomain.Service
	users userdomain.Service
	db    *gorm.DB
	clock *clock.FakeClock
	node  *snowflake.Node
}

func setupAPIKeys(t *testing.T) apikeyFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

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
	require.NoError(t, db.Exec(`CREATE TABLE api_keys (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		prefix TEXT NOT NULL UNIQUE,
		hash TEXT NOT NULL,
		scopes TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		last_used_at DATETIME,
		revoked_at DATETIME
	)`).Error)

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

	enforcer, err := authorization.NewEnforcer(db)
	require.NoError(t, err)
	authz := authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer})

	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  apikeyrepo.Provide(),
		Users: users,
		Authz: authz,
	})

	return apikeyFixture{svc: svc, users: users, db: db, clock: fake, node: node}
}

func createKeyUser(t *testing.T, users userdomain.Service, name string, role userdomain.Role) *userdomain.User {
	t.Helper()
	user, err := users.Create(context.Background(), userdomain.CreateUserRequest{
		DisplayName: name,
		Email:       fmt.Sprintf("%s@roamio.test", name),
		Role:        role,
	})
	require.NoError(t, err)
	return user
}

func TestCreateAndVerify(t *testing.T) {
	f := setupAPIKeys(t)
	ctx := context.Background()

	admin := createKeyUser(t, f.users, "key-admin", userdomain.RoleAdmin)

	secret, err := f.svc.Create(ctx, admin.ID.String(), apikeydomain.CreateRequest{Name: "ingest gateway"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(secret.APIKey, "ak_live_"))
	assert.True(t, strings.HasPrefix(secret.APIKey, secret.Prefix+"_"))

	f.clock.Advance(time.Hour)

	key, err := f.svc.Verify(ctx, secret.APIKey, apikeydomain.ScopeUsageWrite)
	require.NoError(t, err)
	assert.Equal(t, secret.Prefix, key.Prefix)
	assert.Equal(t, "ingest gateway", key.Name)

	stored, err := apikeyrepo.Provide().FindByPrefix(ctx, f.db, secret.Prefix)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.NotNil(t, stored.LastUsedAt, "verification touches last_used_at")
	assert.WithinDuration(t, testNow.Add(time.Hour), *stored.LastUsedAt, time.Second)
	assert.Len(t, stored.Hash, 64, "only the sha256 digest is stored")
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	f := setupAPIKeys(t)
	ctx := context.Background()

	admin := createKeyUser(t, f.users, "key-admin", userdomain.RoleAdmin)
	secret, err := f.svc.Create(ctx, admin.ID.String(), apikeydomain.CreateRequest{Name: "ingest gateway"})
	require.NoError(t, err)

	_, err = f.svc.Verify(ctx, secret.APIKey+"0", apikeydomain.ScopeUsageWrite)
	assert.ErrorIs(t, err, apikeydomain.ErrKeyInvalid)
}

func TestVerifyScopeEnforcement(t *testing.T) {
	f := setupAPIKeys(t)
	ctx := context.Background()

	admin := createKeyUser(t, f.users, "key-admin", userdomain.RoleAdmin)
	secret, err := f.svc.Create(ctx, admin.ID.String(), apikeydomain.CreateRequest{
		Name:   "reporting export",
		Scopes: []string{apikeydomain.ScopeUsageRead},
	})
	require.NoError(t, err)

	_, err = f.svc.Verify(ctx, secret.APIKey, apikeydomain.ScopeUsageWrite)
	assert.ErrorIs(t, err, apikeydomain.ErrScopeMissing)

	key, err := f.svc.Verify(ctx, secret.APIKey, apikeydomain.ScopeUsageRead)
	require.NoError(t, err)
	assert.Equal(t, []string{apikeydomain.ScopeUsageRead}, []string(key.Scopes))
}

func TestRevoke(t *testing.T) {
	f := setupAPIKeys(t)
	ctx := context.Background()

	admin := createKeyUser(t, f.users, "key-admin", userdomain.RoleAdmin)
	secret, err := f.svc.Create(ctx, admin.ID.String(), apikeydomain.CreateRequest{Name: "old integration"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Revoke(ctx, admin.ID.String(), secret.Prefix))

	_, err = f.svc.Verify(ctx, secret.APIKey, apikeydomain.ScopeUsageWrite)
	assert.ErrorIs(t, err, apikeydomain.ErrKeyRevoked)

	// Revoking twice is a no-op, not an error.
	require.NoError(t, f.svc.Revoke(ctx, admin.ID.String(), secret.Prefix))

	keys, err := f.svc.List(ctx, admin.ID.String())
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.NotNil(t, keys[0].RevokedAt)

	err = f.svc.Revoke(ctx, admin.ID.String(), "ak_live_UNKNOWN")
	assert.ErrorIs(t, err, apikeydomain.ErrKeyNotFound)
}

func TestListNewestFirst(t *testing.T) {
	f := setupAPIKeys(t)
	ctx := context.Background()

	admin := createKeyUser(t, f.users, "key-admin", userdomain.RoleAdmin)

	first, err := f.svc.Create(ctx, admin.ID.String(), apikeydomain.CreateRequest{Name: "first"})
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	second, err := f.svc.Create(ctx, admin.ID.String(), apikeydomain.CreateRequest{Name: "second"})
	require.NoError(t, err)

	keys, err := f.svc.List(ctx, admin.ID.String())
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, second.Prefix, keys[0].Prefix)
	assert.Equal(t, first.Prefix, keys[1].Prefix)
}

func TestManagementGate(t *testing.T) {
	f := setupAPIKeys(t)
	ctx := context.Background()

	member := createKeyUser(t, f.users, "plain-member", userdomain.RoleMember)

	_, err := f.svc.Create(ctx, member.ID.String(), apikeydomain.CreateRequest{Name: "nope"})
	assert.ErrorIs(t, err, authorization.ErrPermissionDenied)

	_, err = f.svc.List(ctx, member.ID.String())
	assert.ErrorIs(t, err, authorization.ErrPermissionDenied)

	err = f.svc.Revoke(ctx, member.ID.String(), "ak_live_ANY")
	assert.ErrorIs(t, err, authorization.ErrPermissionDenied)

	_, err = f.svc.List(ctx, f.node.Generate().String())
	assert.ErrorIs(t, err, userdomain.ErrUserNotFound)

	admin := createKeyUser(t, f.users, "benched-admin", userdomain.RoleAdmin)
	require.NoError(t, f.db.Exec(`UPDATE users SET status = ? WHERE id = ?`, userdomain.StatusInactive, admin.ID).Error)
	_, err = f.svc.List(ctx, admin.ID.String())
	assert.ErrorIs(t, err, userdomain.ErrUserInactive)
}

func TestCreateValidation(t *testing.T) {
	f := setupAPIKeys(t)
	ctx := context.Background()

	admin := createKeyUser(t, f.users, "key-admin", userdomain.RoleAdmin)

	_, err := f.svc.Create(ctx, admin.ID.String(), apikeydomain.CreateRequest{Name: "   "})
	assert.ErrorIs(t, err, apikeydomain.ErrInvalidName)

	_, err = f.svc.Create(ctx, admin.ID.String(), apikeydomain.CreateRequest{
		Name:   "bad scopes",
		Scopes: []string{"billing:write"},
	})
	assert.ErrorIs(t, err, apikeydomain.ErrInvalidScope)
}

func TestVerifyMalformedAndUnknown(t *testing.T) {
	f := setupAPIKeys(t)
	ctx := context.Background()

	_, err := f.svc.Verify(ctx, "garbage", apikeydomain.ScopeUsageWrite)
	assert.ErrorIs(t, err, apikeydomain.ErrKeyInvalid)

	_, err = f.svc.Verify(ctx, "ak_live_NOPE_deadbeef", apikeydomain.ScopeUsageWrite)
	assert.ErrorIs(t, err, apikeydomain.ErrKeyNotFound)
}
