package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics owns a private registry so several servers (in tests) never
// collide on registration.
type metrics struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	wizardOps       *prometheus.CounterVec
	prompts         *prometheus.CounterVec
	imports         *prometheus.CounterVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medannot_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "medannot_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		wizardOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medannot_wizard_operations_total",
			Help: "Wizard operations by name and outcome",
		}, []string{"operation", "outcome"}),
		prompts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medannot_restore_prompts_total",
			Help: "Restore dialog shows and resolutions",
		}, []string{"action"}),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medannot_audio_imports_total",
			Help: "Audio uploads by result",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.requestDuration, m.wizardOps, m.prompts, m.imports,
	)

	return m
}

func (m *metrics) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func (m *metrics) handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

func (m *metrics) wizardOp(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.wizardOps.WithLabelValues(op, outcome).Inc()
}
