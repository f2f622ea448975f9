package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	apikeydomain "github.com/roamio/atlas/internal/apikey/domain"
	"github.com/roamio/atlas/internal/clock"
	"github.com/roamio/atlas/internal/config"
	"github.com/roamio/atlas/internal/observability"
	obsmiddleware "github.com/roamio/atlas/internal/observability/logger"
	obsmetrics "github.com/roamio/atlas/internal/observability/metrics"
	obstracing "github.com/roamio/atlas/internal/observability/tracing"
	planlimitdomain "github.com/roamio/atlas/internal/planlimit/domain"
	"github.com/roamio/atlas/internal/providers/pdf"
	"github.com/roamio/atlas/internal/ratelimit"
	subscriptiondomain "github.com/roamio/atlas/internal/subscription/domain"
	usagedomain "github.com/roamio/atlas/internal/usage/domain"
	"github.com/roamio/atlas/internal/usage/recorder"
	userdomain "github.com/roamio/atlas/internal/user/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	clk             clock.Clock
	userSvc         userdomain.Service
	subscriptionSvc subscriptiondomain.Service
	usageSvc        usagedomain.Service
	limitSvc        planlimitdomain.Service
	limitTable      *config.PlanLimitsHolder
	recorder        *recorder.Recorder
	apiKeySvc       apikeydomain.Service
	pdfProvider     pdf.Provider
	obsMetrics      *obsmetrics.Metrics
	usageLimiter    *ratelimit.UsageIngestLimiter
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Clock           clock.Clock
	UserSvc         userdomain.Service
	SubscriptionSvc subscriptiondomain.Service
	UsageSvc        usagedomain.Service
	LimitSvc        planlimitdomain.Service
	LimitTable      *config.PlanLimitsHolder
	Recorder        *recorder.Recorder
	APIKeySvc       apikeydomain.Service
	PDFProvider     pdf.Provider
	ObsMetrics      *obsmetrics.Metrics           `optional:"true"`
	UsageLimiter    *ratelimit.UsageIngestLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		clk:             p.Clock,
		userSvc:         p.UserSvc,
		subscriptionSvc: p.SubscriptionSvc,
		usageSvc:        p.UsageSvc,
		limitSvc:        p.LimitSvc,
		limitTable:      p.LimitTable,
		recorder:        p.Recorder,
		apiKeySvc:       p.APIKeySvc,
		pdfProvider:     p.PDFProvider,
		obsMetrics:      p.ObsMetrics,
		usageLimiter:    p.UsageLimiter,
	}

	svc.registerV1Routes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerV1Routes() {
	v1 := s.engine.Group("/v1")

	users := v1.Group("/users/:user_id")
	{
		users.GET("/subscription", s.GetSubscription)
		users.GET("/subscription/status", s.GetSubscriptionStatus)
		users.GET("/entitlements/:plan", s.CheckEntitlement)

		users.GET("/usage", s.GetCurrentUsage)
		users.GET("/usage/monthly", s.GetMonthlyUsage)
		users.GET("/usage/yearly", s.GetYearlyUsage)
		users.GET("/usage/history", s.ListUsageHistory)
		users.GET("/usage/statement", s.GetUsageStatement)
		users.GET("/limits", s.CheckPlanLimits)
	}

	// -------- Ingest --------
	// Credential gate first, then the token bucket keyed by that credential.
	v1.POST("/usage", s.RequireAPIKey(apikeydomain.ScopeUsageWrite), s.UsageIngestRateLimit(), s.RecordUsage)
	v1.POST("/usage/events", s.RequireAPIKey(apikeydomain.ScopeUsageWrite), s.UsageIngestRateLimit(), s.RecordUsageEvent)

	// -------- Admin --------
	// Admin callers arrive pre-authenticated by the gateway; identity rides
	// in on X-Caller-Id and the services decide what that caller may do.
	admin := v1.Group("/admin", CallerContext())
	{
		admin.GET("/usage/aggregate", s.GetAggregatedUsage)

		admin.GET("/apikeys", s.ListAPIKeys)
		admin.POST("/apikeys", s.CreateAPIKey)
		admin.DELETE("/apikeys/:prefix", s.RevokeAPIKey)
	}
}
