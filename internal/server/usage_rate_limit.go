package server

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/roamio/atlas/internal/observability/logger"
	obsmetrics "github.com/roamio/atlas/internal/observability/metrics"
	"go.uber.org/zap"
)

const rateLimitReasonIngest = "ingest-rate"

// UsageIngestRateLimit applies the shared token bucket to ingest routes. The
// bucket identity is the API key prefix set by RequireAPIKey, so this must
// run after the credential gate.
func (s *Server) UsageIngestRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.usageLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		endpoint := normalizeRateLimitEndpoint(c)

		keyPrefix := strings.TrimSpace(c.GetString(contextAPIKeyPrefixKey))
		if keyPrefix == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		allowed, retryAfter, err := s.usageLimiter.Allow(ctx, keyPrefix)
		if err != nil {
			logger.FromContext(ctx).Warn("usage ingest rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !allowed {
			denyUsageIngestRateLimit(c, endpoint, retryAfter, s.obsMetrics)
			return
		}

		recordRateLimitAllowed(ctx, endpoint, s.obsMetrics)
		c.Next()
	}
}

func denyUsageIngestRateLimit(c *gin.Context, endpoint string, retryAfter time.Duration, metrics *obsmetrics.Metrics) {
	ctx := c.Request.Context()
	logger.FromContext(ctx).Warn("usage ingest rate limit exceeded",
		zap.String("endpoint", endpoint),
		zap.Duration("retry_after", retryAfter),
	)
	recordRateLimitDenied(ctx, endpoint, rateLimitReasonIngest, metrics)

	c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(retryAfter)))
	AbortWithError(c, ErrRateLimited)
}

// retryAfterSeconds rounds up; a Retry-After of 0 would invite an immediate
// retry.
func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

func recordRateLimitAllowed(ctx context.Context, endpoint string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitAllowed(ctx, endpoint)
}

func recordRateLimitDenied(ctx context.Context, endpoint, reason string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitDenied(ctx, endpoint, reason)
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
