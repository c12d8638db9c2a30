package monitor

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequestsTotal 记录 HTTP 请求总量
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "market",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route template and status.",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration 记录 HTTP 请求耗时
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "market",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route template.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.3, 1.0, 3.0},
	}, []string{"method", "path"})

	// HTTPInFlight 正在处理的请求数
	HTTPInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "market",
		Name:      "http_requests_in_flight",
		Help:      "Requests currently being served.",
	})

	initOnce sync.Once
)

// Init registers the HTTP and business metrics once per process
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(HTTPRequestsTotal, HTTPRequestDuration, HTTPInFlight)
		InitBusinessMetrics()
	})
}

// PrometheusMiddleware records every matched route. Labels use the route template
// (/api/v1/orders/:id/status) so ids never blow up cardinality.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			c.Next()
			return
		}

		HTTPInFlight.Inc()
		start := time.Now()
		c.Next()
		HTTPInFlight.Dec()

		HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
