package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dormouse-bot/dormouse/internal/domain"
	"github.com/dormouse-bot/dormouse/internal/service/report"
)

// GetExportCSV handles GET /v1/export.csv. Optional query params: user_id,
// from, to (RFC 3339) narrow the export.
func (h *Handler) GetExportCSV(c *gin.Context) {
	var filter domain.ExportFilter
	filter.UserID = c.Query("user_id")

	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.badRequest(c, err)
			return
		}
		filter.From = t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.badRequest(c, err)
			return
		}
		filter.To = t
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="sleep_sessions.csv"`)
	c.Status(http.StatusOK)

	if _, err := h.reports.ExportCSV(c.Request.Context(), c.Writer, filter); err != nil {
		// Headers are already gone; log instead of rewriting the status.
		h.log.ErrorContext(c.Request.Context(), "csv export failed", "error", err)
	}
}

// weeklySummaryResponse carries both the folded numbers and the formatted
// text so thin adapters can post Text directly.
type weeklySummaryResponse struct {
	Summary *domain.WeeklySummary `json:"summary"`
	Text    string                `json:"text"`
}

// GetWeeklySummary handles GET /v1/summary/weekly. It always reports the
// trailing 7-day window; the daily dedupe only applies to the background
// scheduler.
func (h *Handler) GetWeeklySummary(c *gin.Context) {
	summary, err := h.reports.Weekly(c.Request.Context(), h.now())
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, weeklySummaryResponse{
		Summary: summary,
		Text:    report.FormatWeekly(summary),
	})
}
