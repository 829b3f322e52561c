package rest

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dormouse-bot/dormouse/internal/parse"
)

var (
	// httpRequests counts requests by method, registered route, and status.
	// Route paths are the gin templates, so cardinality stays bounded.
	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dormouse_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dormouse_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// messagesHandled counts check-in messages by parsed intent and the
	// prompt class the service answered with.
	messagesHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dormouse_messages_total",
			Help: "Check-in messages handled, by intent and outcome.",
		},
		[]string{"intent", "outcome"},
	)

	// commandsHandled counts structured history commands by outcome.
	commandsHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dormouse_commands_total",
			Help: "History commands handled, by command and outcome.",
		},
		[]string{"command", "outcome"},
	)
)

func observeMessage(kind parse.IntentKind, outcome string) {
	messagesHandled.WithLabelValues(string(kind), outcome).Inc()
}

func observeCommand(command, outcome string) {
	commandsHandled.WithLabelValues(command, outcome).Inc()
}

// Metrics instruments every request with the HTTP counters above.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		httpRequests.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// MetricsHandler exposes the prometheus scrape endpoint.
func MetricsHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
