package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/roamio/atlas/internal/callerctx"
)

// HeaderCallerID carries the gateway-authenticated caller on admin routes.
// Authentication itself happens upstream; atlas only consumes the identity.
const HeaderCallerID = "X-Caller-Id"

// CallerContext copies the caller header into the request context. A missing
// header passes through untouched; handlers that need a caller reject the
// request themselves.
func CallerContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderCallerID))
		if raw == "" {
			c.Next()
			return
		}

		id, err := snowflake.ParseString(raw)
		if err != nil || id == 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := callerctx.WithCallerID(c.Request.Context(), int64(id))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (s *Server) callerID(c *gin.Context) (string, bool) {
	id, ok := callerctx.CallerIDFromContext(c.Request.Context())
	if !ok || id == 0 {
		return "", false
	}
	return id.String(), true
}
