package server

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	planlimitdomain "github.com/roamio/atlas/internal/planlimit/domain"
	"github.com/roamio/atlas/internal/providers/pdf"
	subscriptiondomain "github.com/roamio/atlas/internal/subscription/domain"
	usagedomain "github.com/roamio/atlas/internal/usage/domain"
)

// statementUncapped marks metrics that are metered but carry no cap.
const statementUncapped = "-"

// GetUsageStatement renders one month's usage as a PDF. The statement prices
// nothing; it reports metered usage against the current limit table.
func (s *Server) GetUsageStatement(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("user_id"))

	var query struct {
		Month int `form:"month"`
		Year  int `form:"year"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()

	summary, err := s.usageSvc.GetMonthlyUsage(ctx, userID, query.Month, query.Year)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	user, err := s.userSvc.GetByID(ctx, userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	sub, err := s.subscriptionSvc.GetSubscription(ctx, userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	plan := subscriptiondomain.PlanFree
	if sub != nil {
		plan = sub.Plan
	}

	table := s.limitTable.Get()
	limits, ok := table.LimitsFor(string(plan))
	if !ok {
		limits, _ = table.LimitsFor(string(subscriptiondomain.PlanFree))
	}
	limitSet := planlimitdomain.LimitSetFromConfig(limits)
	overages, _ := planlimitdomain.Evaluate(limitSet, summary.Totals)

	doc, err := s.pdfProvider.GenerateStatement(ctx, pdf.StatementData{
		Handle:      user.Handle,
		Plan:        string(plan),
		Period:      fmt.Sprintf("%s %d", time.Month(query.Month), query.Year),
		GeneratedAt: s.clk.Now().UTC().Format(time.RFC3339),
		Rows:        statementRows(summary.Totals, limitSet, overages),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	out, err := io.ReadAll(doc)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=usage-%04d-%02d.pdf", query.Year, query.Month))
	c.Data(http.StatusOK, "application/pdf", out)
}

func statementRows(totals usagedomain.Totals, limits planlimitdomain.LimitSet, overages planlimitdomain.Overages) []pdf.StatementRow {
	return []pdf.StatementRow{
		{
			Metric:  "Regions created",
			Used:    strconv.Itoa(totals.RegionsCreated),
			Limit:   formatStatementLimit(limits.RegionsCreated),
			Overage: formatStatementAmount(overages.RegionsCreated),
		},
		{
			Metric:  "Places created",
			Used:    strconv.Itoa(totals.PlacesCreated),
			Limit:   formatStatementLimit(limits.PlacesCreated),
			Overage: formatStatementAmount(overages.PlacesCreated),
		},
		{
			Metric:  "Check-ins",
			Used:    strconv.Itoa(totals.CheckinsCount),
			Limit:   statementUncapped,
			Overage: statementUncapped,
		},
		{
			Metric:  "Images uploaded",
			Used:    strconv.Itoa(totals.ImagesUploaded),
			Limit:   statementUncapped,
			Overage: statementUncapped,
		},
		{
			Metric:  "Storage (MB)",
			Used:    formatStatementAmount(totals.StorageUsedMB),
			Limit:   formatStatementLimit(limits.StorageMB),
			Overage: formatStatementAmount(overages.StorageMB),
		},
		{
			Metric:  "API calls",
			Used:    strconv.Itoa(totals.APICallsCount),
			Limit:   formatStatementLimit(limits.APICalls),
			Overage: formatStatementAmount(overages.APICalls),
		},
	}
}

func formatStatementLimit(l planlimitdomain.MetricLimit) string {
	if l.Unlimited || l.Limit == nil {
		return "unlimited"
	}
	return formatStatementAmount(*l.Limit)
}

func formatStatementAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
