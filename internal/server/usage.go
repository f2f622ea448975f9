package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	usagedomain "github.com/roamio/atlas/internal/usage/domain"
	"github.com/roamio/atlas/internal/usage/recorder"
	"github.com/roamio/atlas/pkg/db/pagination"
)

type recordUsageRequest struct {
	UserID string `json:"user_id" binding:"required"`
	usagedomain.Deltas
}

func (s *Server) RecordUsage(c *gin.Context) {
	var req recordUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	summary, err := s.usageSvc.RecordUsage(c.Request.Context(), strings.TrimSpace(req.UserID), req.Deltas)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

type usageEventRequest struct {
	UserID   string         `json:"user_id" binding:"required"`
	Type     string         `json:"type" binding:"required"`
	SizeKB   float64        `json:"size_kb"`
	Metadata map[string]any `json:"metadata"`
}

// RecordUsageEvent accepts activity events and answers 202 regardless of
// metering outcome; the recorder owns every failure past this point.
func (s *Server) RecordUsageEvent(c *gin.Context) {
	var req usageEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if eventType := strings.TrimSpace(req.Type); eventType != "" {
		c.Set("event_type", eventType)
	}

	s.recorder.Record(c.Request.Context(), strings.TrimSpace(req.UserID), recorder.Event{
		Type:     recorder.EventType(strings.TrimSpace(req.Type)),
		SizeKB:   req.SizeKB,
		Metadata: req.Metadata,
	})

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (s *Server) GetCurrentUsage(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("user_id"))

	summary, err := s.usageSvc.GetCurrentMonthUsage(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (s *Server) GetMonthlyUsage(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("user_id"))

	var query struct {
		Month int `form:"month"`
		Year  int `form:"year"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	summary, err := s.usageSvc.GetMonthlyUsage(c.Request.Context(), userID, query.Month, query.Year)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (s *Server) GetYearlyUsage(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("user_id"))

	var query struct {
		Year int `form:"year"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	summary, err := s.usageSvc.GetYearlyUsage(c.Request.Context(), userID, query.Year)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (s *Server) ListUsageHistory(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("user_id"))

	var query pagination.Pagination
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.usageSvc.ListUsageHistory(c.Request.Context(), usagedomain.ListUsageHistoryRequest{
		UserID:    userID,
		PageToken: query.PageToken,
		PageSize:  int32(query.PageSize),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.History, "page_info": resp.PageInfo})
}

func (s *Server) GetAggregatedUsage(c *gin.Context) {
	callerID, ok := s.callerID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var query struct {
		Plan  string `form:"plan"`
		Start string `form:"start"`
		End   string `form:"end"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	start, err := parseOptionalTime(query.Start, false)
	if err != nil {
		AbortWithError(c, newValidationError("start", "invalid_start", "invalid start"))
		return
	}

	end, err := parseOptionalTime(query.End, true)
	if err != nil {
		AbortWithError(c, newValidationError("end", "invalid_end", "invalid end"))
		return
	}

	// Absent bounds stay zero; the service rejects them with the rest of the
	// range validation.
	var startAt, endAt time.Time
	if start != nil {
		startAt = *start
	}
	if end != nil {
		endAt = *end
	}

	agg, err := s.usageSvc.GetAggregatedUsageByPlan(c.Request.Context(), callerID, strings.TrimSpace(query.Plan), startAt, endAt)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, agg)
}
