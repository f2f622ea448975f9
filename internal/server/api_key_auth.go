package server

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	apikeydomain "github.com/roamio/atlas/internal/apikey/domain"
)

const contextAPIKeyPrefixKey = "api_key_prefix"

// RequireAPIKey authenticates ingest requests with a bearer API key and
// checks the key carries the given scope. The key's prefix becomes the rate
// limit identity for the rest of the request.
func (s *Server) RequireAPIKey(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		key, err := s.apiKeySvc.Verify(c.Request.Context(), parts[1], scope)
		if err != nil {
			switch {
			case errors.Is(err, apikeydomain.ErrScopeMissing):
				AbortWithError(c, ErrForbidden)
			case errors.Is(err, apikeydomain.ErrKeyInvalid),
				errors.Is(err, apikeydomain.ErrKeyNotFound),
				errors.Is(err, apikeydomain.ErrKeyRevoked):
				// Misses and mismatches answer identically.
				AbortWithError(c, ErrUnauthorized)
			default:
				AbortWithError(c, err)
			}
			return
		}

		c.Set(contextAPIKeyPrefixKey, key.Prefix)
		c.Next()
	}
}
