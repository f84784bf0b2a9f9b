package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkup_http_requests_total",
			Help: "Total number of HTTP requests processed by linkup.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "linkup_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "linkup_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
		[]string{"kind"},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkup_ws_events_total",
			Help: "Total number of websocket events.",
		},
		[]string{"kind", "event"},
	)
	chatEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkup_chat_events_total",
			Help: "Total number of conversation events by type.",
		},
		[]string{"type"},
	)
	receiptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkup_receipts_total",
			Help: "Total number of simulated receipt transitions.",
		},
		[]string{"status"},
	)
	openConversations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "linkup_open_conversations",
			Help: "Number of conversations currently held in memory.",
		},
	)
	authAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkup_auth_api_calls_total",
			Help: "Total number of calls to the remote auth API.",
		},
		[]string{"op", "outcome"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "linkup_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsEventsTotal,
		chatEventsTotal,
		receiptsTotal,
		openConversations,
		authAPICallsTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Inc()
}

func DecWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Dec()
}

func IncWSEvent(kind, event string) {
	wsEventsTotal.WithLabelValues(kind, event).Inc()
}

func IncChatEvent(eventType string) {
	chatEventsTotal.WithLabelValues(eventType).Inc()
}

func IncReceipt(status string) {
	receiptsTotal.WithLabelValues(status).Inc()
}

func IncOpenConversations() {
	openConversations.Inc()
}

func DecOpenConversations() {
	openConversations.Dec()
}

// ObserveAuthCall counts a remote auth API call by operation and outcome.
func ObserveAuthCall(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	authAPICallsTotal.WithLabelValues(op, outcome).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
