package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// unmatchedRoute はどのルートにも一致しなかったリクエストのpathラベル。
const unmatchedRoute = "unmatched"

// Metrics はHTTPリクエストのPrometheusメトリクスを収集する。
type Metrics struct {
	// registry はメトリクスの登録先。プロセスごとに独立している。
	registry *prometheus.Registry
	// inFlight は処理中のリクエスト数。
	inFlight prometheus.Gauge
	// requests は処理したリクエスト数。
	requests *prometheus.CounterVec
	// duration はリクエストの処理時間。
	duration *prometheus.HistogramVec
}

// NewMetrics は新しいMetricsを生成し、独自のレジストリに登録する。
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "journal",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "journal",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "path", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "journal",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "path"}),
	}

	m.registry.MustRegister(
		m.inFlight,
		m.requests,
		m.duration,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

// Middleware はリクエストのメトリクスを記録するGinミドルウェアを返す。
// pathラベルにはルート定義のパターンを使い、ラベルの種類数を抑える。
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.inFlight.Inc()
		defer func() {
			m.inFlight.Dec()

			path := c.FullPath()
			if path == "" {
				path = unmatchedRoute
			}
			m.requests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
			m.duration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
		}()

		c.Next()
	}
}

// Handler は登録済みメトリクスを公開するHTTPハンドラーを返す。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
