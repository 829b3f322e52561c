package rest

import (
	"log/slog"

	"github.com/gin-gonic/gin"
)

// NewRouter assembles the gateway: request-ID first so logs and panics carry
// the correlation ID, then logging, metrics, and recovery.
func NewRouter(log *slog.Logger, h *Handler, health *HealthHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(RequestID(), Logger(log), Metrics(), Recovery(log))

	r.GET("/healthz", health.Health)
	r.GET("/livez", health.Live)
	r.GET("/readyz", health.Ready)
	r.GET("/metrics", MetricsHandler())

	v1 := r.Group("/v1")
	{
		v1.POST("/messages", h.PostMessage)

		cmds := v1.Group("/commands")
		{
			cmds.POST("/gn", h.PostGoodnight)
			cmds.POST("/gm", h.PostGoodmorning)
			cmds.POST("/rate", h.PostRate)
			cmds.POST("/reset", h.PostReset)
			cmds.POST("/undo", h.PostUndo)
		}

		v1.GET("/export.csv", h.GetExportCSV)
		v1.GET("/summary/weekly", h.GetWeeklySummary)
	}

	return r
}
