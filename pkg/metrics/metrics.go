package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Pipeline metrics
	LeadsCreated      *prometheus.CounterVec
	DuplicatesMerged  prometheus.Counter
	NotificationsSent *prometheus.CounterVec
	ChatTurns         prometheus.Counter
	FollowUpsSent     prometheus.Counter

	// LLM metrics
	LLMRequests *prometheus.CounterVec
	LLMTokens   prometheus.Counter
	LLMCost     prometheus.Counter
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),

		LeadsCreated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leads_created_total",
				Help: "Total number of leads created",
			},
			[]string{"source"}, // WEBSITE_CHAT, CONTACT_FORM, SERVICES_QUOTE
		),
		DuplicatesMerged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "leads_duplicates_merged_total",
			Help: "Total number of submissions merged into an existing lead",
		}),
		NotificationsSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_sent_total",
				Help: "Total number of operator notifications attempted",
			},
			[]string{"status"}, // sent, failed, skipped
		),
		ChatTurns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chat_turns_total",
			Help: "Total number of chat turns handled",
		}),
		FollowUpsSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "follow_ups_sent_total",
			Help: "Total number of follow-up reminders sent",
		}),

		LLMRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_requests_total",
				Help: "Total number of completion requests",
			},
			[]string{"status"}, // success, failed
		),
		LLMTokens: promauto.NewCounter(prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total number of LLM tokens consumed",
		}),
		LLMCost: promauto.NewCounter(prometheus.CounterOpts{
			Name: "llm_cost_dollars_total",
			Help: "Total LLM spend in dollars",
		}),
	}

	return m
}

// Middleware creates an Echo middleware for Prometheus metrics
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			path := c.Path() // Route pattern, not the raw path

			err := next(c)

			status := c.Response().Status
			duration := time.Since(start).Seconds()

			m.HTTPRequestsTotal.WithLabelValues(req.Method, path, strconv.Itoa(status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(req.Method, path, strconv.Itoa(status)).Observe(duration)

			return err
		}
	}
}

// RecordLeadCreated increments the created-leads counter for a source
func (m *Metrics) RecordLeadCreated(source string) {
	m.LeadsCreated.WithLabelValues(source).Inc()
}

// RecordDuplicateMerged increments the merged-duplicates counter
func (m *Metrics) RecordDuplicateMerged() {
	m.DuplicatesMerged.Inc()
}

// RecordNotification increments the notifications counter
func (m *Metrics) RecordNotification(status string) {
	m.NotificationsSent.WithLabelValues(status).Inc()
}

// RecordChatTurn increments the chat turn counter
func (m *Metrics) RecordChatTurn() {
	m.ChatTurns.Inc()
}

// RecordFollowUp increments the follow-ups counter
func (m *Metrics) RecordFollowUp() {
	m.FollowUpsSent.Inc()
}

// RecordLLMUsage records a completion request with its token and dollar cost
func (m *Metrics) RecordLLMUsage(success bool, tokens int, cost float64) {
	status := "failed"
	if success {
		status = "success"
	}
	m.LLMRequests.WithLabelValues(status).Inc()
	if tokens > 0 {
		m.LLMTokens.Add(float64(tokens))
	}
	if cost > 0 {
		m.LLMCost.Add(cost)
	}
}
