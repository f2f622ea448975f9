package server

import (
	"net/http"
	"testing"
	"time"

	subscriptiondomain "github.com/roamio/atlas/internal/subscription/domain"
	userdomain "github.com/roamio/atlas/internal/user/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSubscriptionRoute(t *testing.T) {
	f := setupServer(t)

	user := createServerUser(t, f, "sub-holder", userdomain.RoleMember)
	seedSubscription(t, f, user.ID, subscriptiondomain.PlanStandard, subscriptiondomain.StatusActive, false, testNow.Add(10*24*time.Hour))

	resp := performJSON(t, f.router, http.MethodGet, "/v1/users/"+user.ID.String()+"/subscription", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Subscription *subscriptiondomain.Subscription `json:"subscription"`
	}
	decodeJSON(t, resp, &body)
	require.NotNil(t, body.Subscription)
	assert.Equal(t, user.ID, body.Subscription.UserID)
	assert.Equal(t, subscriptiondomain.PlanStandard, body.Subscription.Plan)
}

func TestGetSubscriptionRouteNeverSubscribed(t *testing.T) {
	f := setupServer(t)

	user := createServerUser(t, f, "no-sub", userdomain.RoleMember)

	resp := performJSON(t, f.router, http.MethodGet, "/v1/users/"+user.ID.String()+"/subscription", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	// Explicit null, not a 404: the account exists, it just never subscribed.
	var body struct {
		Subscription *subscriptiondomain.Subscription `json:"subscription"`
	}
	decodeJSON(t, resp, &body)
	assert.Nil(t, body.Subscription)
}

func TestGetSubscriptionRouteUnknownUser(t *testing.T) {
	f := setupServer(t)

	resp := performJSON(t, f.router, http.MethodGet, "/v1/users/424242/subscription", nil, nil)
	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "user_not_found", decodeError(t, resp).Error.Type)
}

func TestGetSubscriptionRouteInactiveUser(t *testing.T) {
	f := setupServer(t)

	user := createServerUser(t, f, "dormant", userdomain.RoleMember)
	deactivateUser(t, f, user.ID)

	resp := performJSON(t, f.router, http.MethodGet, "/v1/users/"+user.ID.String()+"/subscription", nil, nil)
	require.Equal(t, http.StatusForbidden, resp.Code)
	assert.Equal(t, "user_inactive", decodeError(t, resp).Error.Type)
}

func TestGetSubscriptionStatusRouteStaleActiveRow(t *testing.T) {
	f := setupServer(t)

	// The stored row still says active but its period lapsed; the clock
	// decides, not the column.
	user := createServerUser(t, f, "lapsed", userdomain.RoleMember)
	seedSubscription(t, f, user.ID, subscriptiondomain.PlanPremium, subscriptiondomain.StatusActive, false, testNow.Add(-48*time.Hour))

	resp := performJSON(t, f.router, http.MethodGet, "/v1/users/"+user.ID.String()+"/subscription/status", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var view subscriptiondomain.StatusView
	decodeJSON(t, resp, &view)
	assert.True(t, view.IsExpired)
	assert.False(t, view.IsActive)
	assert.False(t, view.HasActiveSubscription)
	require.NotNil(t, view.DaysUntilExpiry)
	assert.Negative(t, *view.DaysUntilExpiry)
}

func TestGetSubscriptionStatusRouteGracefulCancellation(t *testing.T) {
	f := setupServer(t)

	user := createServerUser(t, f, "winding-down", userdomain.RoleMember)
	seedSubscription(t, f, user.ID, subscriptiondomain.PlanStandard, subscriptiondomain.StatusCancelled, true, testNow.Add(5*24*time.Hour))

	resp := performJSON(t, f.router, http.MethodGet, "/v1/users/"+user.ID.String()+"/subscription/status", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var view subscriptiondomain.StatusView
	decodeJSON(t, resp, &view)
	assert.True(t, view.IsCancelled)
	assert.True(t, view.IsActive)
	assert.True(t, view.HasActiveSubscription)
	assert.False(t, view.IsExpired)
}

func TestGetSubscriptionStatusRouteNeverSubscribed(t *testing.T) {
	f := setupServer(t)

	user := createServerUser(t, f, "status-empty", userdomain.RoleMember)

	resp := performJSON(t, f.router, http.MethodGet, "/v1/users/"+user.ID.String()+"/subscription/status", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var view subscriptiondomain.StatusView
	decodeJSON(t, resp, &view)
	assert.Nil(t, view.Subscription)
	assert.False(t, view.IsActive)
	assert.False(t, view.HasActiveSubscription)
	assert.Nil(t, view.DaysUntilExpiry)
}

func TestCheckEntitlementRouteFreeNeedsNoAccount(t *testing.T) {
	f := setupServer(t)

	// Free short-circuits before any user lookup.
	resp := performJSON(t, f.router, http.MethodGet, "/v1/users/999999/entitlements/free", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Entitled bool `json:"entitled"`
	}
	decodeJSON(t, resp, &body)
	assert.True(t, body.Entitled)
}

func TestCheckEntitlementRouteHierarchy(t *testing.T) {
	f := setupServer(t)

	user := createServerUser(t, f, "standard-holder", userdomain.RoleMember)
	seedSubscription(t, f, user.ID, subscriptiondomain.PlanStandard, subscriptiondomain.StatusActive, false, testNow.Add(10*24*time.Hour))

	var body struct {
		Entitled bool `json:"entitled"`
	}

	resp := performJSON(t, f.router, http.MethodGet, "/v1/users/"+user.ID.String()+"/entitlements/standard", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	decodeJSON(t, resp, &body)
	assert.True(t, body.Entitled)

	resp = performJSON(t, f.router, http.MethodGet, "/v1/users/"+user.ID.String()+"/entitlements/premium", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	decodeJSON(t, resp, &body)
	assert.False(t, body.Entitled)
}

func TestCheckEntitlementRouteExpiredSubscription(t *testing.T) {
	f := setupServer(t)

	user := createServerUser(t, f, "expired-holder", userdomain.RoleMember)
	seedSubscription(t, f, user.ID, subscriptiondomain.PlanPremium, subscriptiondomain.StatusActive, false, testNow.Add(-time.Hour))

	resp := performJSON(t, f.router, http.MethodGet, "/v1/users/"+user.ID.String()+"/entitlements/premium", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Entitled bool `json:"entitled"`
	}
	decodeJSON(t, resp, &body)
	assert.False(t, body.Entitled)
}

func TestCheckEntitlementRouteUnknownPlan(t *testing.T) {
	f := setupServer(t)

	user := createServerUser(t, f, "plan-typo", userdomain.RoleMember)

	resp := performJSON(t, f.router, http.MethodGet, "/v1/users/"+user.ID.String()+"/entitlements/gold", nil, nil)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	env := decodeError(t, resp)
	assert.Equal(t, "validation_error", env.Error.Type)
	require.Len(t, env.Error.Errors, 1)
	assert.Equal(t, "invalid_plan", env.Error.Errors[0].Code)
}
