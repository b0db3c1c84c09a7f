package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ServerMetrics struct {
	Requests   *prometheus.CounterVec
	LatencyMS  *prometheus.HistogramVec
	Rejections *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewServerMetrics registers the HTTP collectors on reg. Tests pass a fresh
// prometheus.NewRegistry(); the server passes prometheus.DefaultRegisterer.
func NewServerMetrics(reg prometheus.Registerer, gatherer prometheus.Gatherer) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "akima",
		Subsystem: "api",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "route", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "akima",
		Subsystem: "api",
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"method", "route"})
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "akima",
		Subsystem: "ledger",
		Name:      "rejections_total",
		Help:      "Requests refused with a business error code.",
	}, []string{"code"})

	reg.MustRegister(requests, latency, rejections)
	return &ServerMetrics{Requests: requests, LatencyMS: latency, Rejections: rejections, gatherer: gatherer}
}

// Middleware records one sample per request, labelled by the matched route
// template so path ids do not explode cardinality.
func (m *ServerMetrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method

		m.Requests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.LatencyMS.WithLabelValues(method, route).Observe(float64(time.Since(start).Milliseconds()))
	}
}

func (m *ServerMetrics) Reject(code string) {
	m.Rejections.WithLabelValues(code).Inc()
}

func (m *ServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
