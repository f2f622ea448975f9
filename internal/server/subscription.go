package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	subscriptiondomain "github.com/roamio/atlas/internal/subscription/domain"
)

func (s *Server) GetSubscription(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("user_id"))

	sub, err := s.subscriptionSvc.GetSubscription(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	// A user who never subscribed answers with an explicit null, not a 404.
	c.JSON(http.StatusOK, gin.H{"subscription": sub})
}

func (s *Server) GetSubscriptionStatus(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("user_id"))

	view, err := s.subscriptionSvc.GetSubscriptionStatus(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (s *Server) CheckEntitlement(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("user_id"))
	required := subscriptiondomain.Plan(c.Param("plan"))

	entitled, err := s.subscriptionSvc.CheckPermission(c.Request.Context(), userID, required)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"entitled": entitled})
}
