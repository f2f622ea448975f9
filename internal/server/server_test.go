package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	apikeydomain "github.com/roamio/atlas/internal/apikey/domain"
	apikeyrepo "github.com/roamio/atlas/internal/apikey/repository"
	apikeyservice "github.com/roamio/atlas/internal/apikey/service"
	"github.com/roamio/atlas/internal/authorization"
	"github.com/roamio/atlas/internal/clock"
	"github.com/roamio/atlas/internal/config"
	planlimitservice "github.com/roamio/atlas/internal/planlimit/service"
	"github.com/roamio/atlas/internal/providers/pdf"
	subscriptiondomain "github.com/roamio/atlas/internal/subscription/domain"
	subscriptionrepo "github.com/roamio/atlas/internal/subscription/repository"
	subscriptionservice "github.com/roamio/atlas/internal/subscription/service"
	usagedomain "github.com/roamio/atlas/internal/usage/domain"
	usagerepo "github.com/roamio/atlas/internal/usage/repository"
	"github.com/roamio/atlas/internal/usage/recorder"
	usageservice "github.com/roamio/atlas/internal/usage/service"
	userdomain "github.com/roamio/atlas/internal/user/domain"
	userrepo "github.com/roamio/atlas/internal/user/repository"
	userservice "github.com/roamio/atlas/internal/user/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

// serverFixture wires the real services over an in-memory store so route
// tests exercise the same code paths the composed application runs.
type serverFixture struct {
	srv    *Server
	router *gin.Engine
	users  userdomain.Service
	keys   apikeydomain.Service
	db     *gorm.DB
	clock  *clock.FakeClock
	node   *snowflake.Node
}

func setupServer(t *testing.T) *serverFixture {
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
	require.NoError(t, db.Exec(`CREATE TABLE usage_metrics (
		id BIGINT PRIMARY KEY,
		user_id BIGINT NOT NULL,
		month INTEGER NOT NULL,
		year INTEGER NOT NULL,
		regions_created INTEGER NOT NULL DEFAULT 0,
		places_created INTEGER NOT NULL DEFAULT 0,
		checkins_count INTEGER NOT NULL DEFAULT 0,
		images_uploaded INTEGER NOT NULL DEFAULT 0,
		storage_used_mb REAL NOT NULL DEFAULT 0,
		api_calls_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE (user_id, month, year)
	)`).Error)
	require.NoError(t, db.Exec(`CREATE TABLE usage_events (
		id BIGINT PRIMARY KEY,
		user_id BIGINT NOT NULL,
		event_type TEXT NOT NULL,
		metadata TEXT,
		correlation_id TEXT,
		created_at DATETIME NOT NULL
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

	subs := subscriptionservice.NewService(subscriptionservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: fake,
		Repo:  subscriptionrepo.Provide(),
		Users: users,
	})

	enforcer, err := authorization.NewEnforcer(db)
	require.NoError(t, err)
	authz := authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer})

	meter := usageservice.NewService(usageservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  usagerepo.Provide(),
		Users: users,
		Authz: authz,
	})

	keys := apikeyservice.NewService(apikeyservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  apikeyrepo.Provide(),
		Users: users,
		Authz: authz,
	})

	rec := recorder.NewRecorder(recorder.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Meter: meter,
		Repo:  usagerepo.Provide(),
	})

	// Test processes run without a planlimits.yml, so the holder serves the
	// built-in table.
	holder, err := config.NewPlanLimitsHolder()
	require.NoError(t, err)

	limits := planlimitservice.NewService(planlimitservice.Params{
		Log:           zap.NewNop(),
		Limits:        holder,
		Subscriptions: subs,
		Usage:         meter,
	})

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorHandlingMiddleware())

	srv := &Server{
		engine:          router,
		cfg:             config.Config{},
		clk:             fake,
		userSvc:         users,
		subscriptionSvc: subs,
		usageSvc:        meter,
		limitSvc:        limits,
		limitTable:      holder,
		recorder:        rec,
		apiKeySvc:       keys,
		pdfProvider:     pdf.New(),
	}
	srv.registerV1Routes()

	return &serverFixture{
		srv:    srv,
		router: router,
		users:  users,
		keys:   keys,
		db:     db,
		clock:  fake,
		node:   node,
	}
}

func createServerUser(t *testing.T, f *serverFixture, name string, role userdomain.Role) *userdomain.User {
	t.Helper()
	user, err := f.users.Create(context.Background(), userdomain.CreateUserRequest{
		DisplayName: name,
		Email:       fmt.Sprintf("%s@roamio.test", name),
		Role:        role,
	})
	require.NoError(t, err)
	return user
}

func deactivateUser(t *testing.T, f *serverFixture, userID snowflake.ID) {
	t.Helper()
	require.NoError(t, f.db.Exec(`UPDATE users SET status = 'inactive' WHERE id = ?`, userID).Error)
}

func seedSubscription(t *testing.T, f *serverFixture, userID snowflake.ID, plan subscriptiondomain.Plan, status subscriptiondomain.Status, cancelAtPeriodEnd bool, periodEnd time.Time) {
	t.Helper()
	require.NoError(t, subscriptionrepo.Provide().Insert(context.Background(), f.db, &subscriptiondomain.Subscription{
		ID:                 f.node.Generate(),
		UserID:             userID,
		Plan:               plan,
		Status:             status,
		CurrentPeriodStart: periodEnd.Add(-30 * 24 * time.Hour),
		CurrentPeriodEnd:   periodEnd,
		CancelAtPeriodEnd:  cancelAtPeriodEnd,
		CreatedAt:          testNow,
		UpdatedAt:          testNow,
	}))
}

func seedBucket(t *testing.T, f *serverFixture, userID snowflake.ID, month, year int, totals usagedomain.Totals) {
	t.Helper()
	require.NoError(t, usagerepo.Provide().IncrementUsage(context.Background(), f.db, &usagedomain.UsageMetrics{
		ID:             f.node.Generate(),
		UserID:         userID,
		Month:          month,
		Year:           year,
		RegionsCreated: totals.RegionsCreated,
		PlacesCreated:  totals.PlacesCreated,
		CheckinsCount:  totals.CheckinsCount,
		ImagesUploaded: totals.ImagesUploaded,
		StorageUsedMB:  totals.StorageUsedMB,
		APICallsCount:  totals.APICallsCount,
		CreatedAt:      testNow,
		UpdatedAt:      testNow,
	}))
}

// mintIngestKey creates an admin and mints a key through the service so auth
// tests start from a known-good credential.
func mintIngestKey(t *testing.T, f *serverFixture, scopes ...string) *apikeydomain.SecretResponse {
	t.Helper()
	admin := createServerUser(t, f, fmt.Sprintf("key-admin-%d", f.node.Generate()), userdomain.RoleAdmin)
	secret, err := f.keys.Create(context.Background(), admin.ID.String(), apikeydomain.CreateRequest{
		Name:   "test ingest",
		Scopes: scopes,
	})
	require.NoError(t, err)
	return secret
}

func performJSON(t *testing.T, router *gin.Engine, method, target string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func decodeJSON(t *testing.T, resp *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), out))
}

// errorEnvelope mirrors the wire shape of mapped errors.
type errorEnvelope struct {
	Error struct {
		Type    string            `json:"type"`
		Message string            `json:"message"`
		Errors  []ValidationError `json:"errors"`
	} `json:"error"`
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	decodeJSON(t, resp, &env)
	return env
}
