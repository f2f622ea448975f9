package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) CheckPlanLimits(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("user_id"))

	result, err := s.limitSvc.CheckPlanLimits(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
