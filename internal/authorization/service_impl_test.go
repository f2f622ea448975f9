package authorization

import (
	"context"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func openAuthzDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	return gdb
}

func setupAuthorization(t *testing.T) Service {
	t.Helper()

	enforcer, err := NewEnforcer(openAuthzDB(t))
	require.NoError(t, err)

	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func TestAuthorizeAdminPolicies(t *testing.T) {
	svc := setupAuthorization(t)
	ctx := context.Background()

	require.NoError(t, svc.Authorize(ctx, "admin", ObjectUsageAggregate, ActionRead))
	require.NoError(t, svc.Authorize(ctx, "admin", ObjectAPIKeys, ActionWrite))
}

func TestAuthorizeDeniesUnprivilegedRoles(t *testing.T) {
	svc := setupAuthorization(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		role   string
		object string
		action string
	}{
		{"member cannot read aggregates", "member", ObjectUsageAggregate, ActionRead},
		{"member cannot manage keys", "member", ObjectAPIKeys, ActionWrite},
		{"admin holds no aggregate write", "admin", ObjectUsageAggregate, ActionWrite},
		{"unknown role", "superuser", ObjectUsageAggregate, ActionRead},
		{"blank role", "", ObjectUsageAggregate, ActionRead},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Authorize(ctx, tt.role, tt.object, tt.action)
			assert.ErrorIs(t, err, ErrPermissionDenied)
		})
	}
}

func TestAuthorizeNormalizesRole(t *testing.T) {
	svc := setupAuthorization(t)

	require.NoError(t, svc.Authorize(context.Background(), "  Admin ", ObjectUsageAggregate, ActionRead))
}

func TestNewEnforcerReseedIsIdempotent(t *testing.T) {
	gdb := openAuthzDB(t)

	_, err := NewEnforcer(gdb)
	require.NoError(t, err)

	enforcer, err := NewEnforcer(gdb)
	require.NoError(t, err)

	svc := NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
	require.NoError(t, svc.Authorize(context.Background(), "admin", ObjectUsageAggregate, ActionRead))
}
