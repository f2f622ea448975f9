package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	apikeydomain "github.com/roamio/atlas/internal/apikey/domain"
)

type createAPIKeyRequest struct {
	Name   string   `json:"name"`
	Scopes []string `json:"scopes"`
}

func (s *Server) ListAPIKeys(c *gin.Context) {
	callerID, ok := s.callerID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	keys, err := s.apiKeySvc.List(c.Request.Context(), callerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, keys)
}

func (s *Server) CreateAPIKey(c *gin.Context) {
	callerID, ok := s.callerID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	// The plain key appears in this response and nowhere else.
	resp, err := s.apiKeySvc.Create(c.Request.Context(), callerID, apikeydomain.CreateRequest{
		Name:   strings.TrimSpace(req.Name),
		Scopes: req.Scopes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) RevokeAPIKey(c *gin.Context) {
	callerID, ok := s.callerID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	prefix := strings.TrimSpace(c.Param("prefix"))
	if err := s.apiKeySvc.Revoke(c.Request.Context(), callerID, prefix); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
