package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics captures settlement and delivery health signals.
type Metrics struct {
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	paymentEvents *prometheus.CounterVec
	jobsProcessed *prometheus.CounterVec
	pollSessions  *prometheus.CounterVec
}

func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})
	httpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"route"})
	paymentEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_events_total",
		Help: "Observed payment status signals by terminal status and source.",
	}, []string{"status", "source"})
	jobsProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "background_jobs_processed_total",
		Help: "Background jobs by type and outcome.",
	}, []string{"job_type", "outcome"})
	pollSessions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_sessions_total",
		Help: "Reconciliation sessions by outcome.",
	}, []string{"outcome"})

	registerer.MustRegister(httpRequests, httpDuration, paymentEvents, jobsProcessed, pollSessions)

	return &Metrics{
		httpRequests:  httpRequests,
		httpDuration:  httpDuration,
		paymentEvents: paymentEvents,
		jobsProcessed: jobsProcessed,
		pollSessions:  pollSessions,
	}
}

// GinMiddleware records per-request counters and latency.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if strings.TrimSpace(route) == "" {
			route = "unknown"
		}
		m.httpRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) RecordPaymentEvent(status, source string) {
	if m == nil {
		return
	}
	m.paymentEvents.WithLabelValues(status, source).Inc()
}

func (m *Metrics) RecordJob(jobType, outcome string) {
	if m == nil {
		return
	}
	m.jobsProcessed.WithLabelValues(jobType, outcome).Inc()
}

func (m *Metrics) RecordPollSession(outcome string) {
	if m == nil {
		return
	}
	m.pollSessions.WithLabelValues(outcome).Inc()
}
