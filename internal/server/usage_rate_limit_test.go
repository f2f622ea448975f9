package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 1, retryAfterSeconds(0))
	assert.Equal(t, 1, retryAfterSeconds(200*time.Millisecond))
	assert.Equal(t, 2, retryAfterSeconds(1100*time.Millisecond))
	assert.Equal(t, 5, retryAfterSeconds(5*time.Second))
}

func TestDenyUsageIngestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	resp := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(resp)
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/usage", nil)

	denyUsageIngestRateLimit(c, "/v1/usage", 1500*time.Millisecond, nil)

	assert.Equal(t, "2", resp.Header().Get("Retry-After"))
	assert.True(t, c.IsAborted())
	require.NotEmpty(t, c.Errors)
	assert.ErrorIs(t, c.Errors.Last().Err, ErrRateLimited)
}

func TestNormalizeRateLimitEndpoint(t *testing.T) {
	assert.Equal(t, "unknown", normalizeRateLimitEndpoint(nil))

	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/usage/events", nil)

	// Outside a routed handler FullPath is empty, so the raw path backs it up.
	assert.Equal(t, "/v1/usage/events", normalizeRateLimitEndpoint(c))
}
