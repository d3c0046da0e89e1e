package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	namespace = "potato_api"

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	imageDecodeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_decode_total",
			Help:      "Number of decoded uploads",
		},
		[]string{"status", "format"},
	)

	imageDecodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "image_decode_duration_seconds",
			Help:      "Time spent decoding and resizing uploads",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"status", "format"},
	)

	inferenceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_duration_seconds",
			Help:      "Time spent in one forward pass",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend", "status"},
	)

	predictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Number of predictions by class",
		},
		[]string{"class"},
	)
)

func HttpRequestsTotal(method, path, code string) {
	httpRequestsTotal.With(prometheus.Labels{
		"method": method,
		"path":   path,
		"code":   code,
	}).Inc()
}

func HttpRequestDuration(method, path string, duration time.Duration) {
	httpRequestDuration.With(prometheus.Labels{
		"method": method,
		"path":   path,
	}).Observe(duration.Seconds())
}

func ImageDecode(status, format string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	labels := prometheus.Labels{
		"status": status,
		"format": format,
	}
	imageDecodeTotal.With(labels).Inc()
	imageDecodeDuration.With(labels).Observe(duration.Seconds())
}

func InferenceDuration(backend, status string, duration time.Duration) {
	inferenceDuration.With(prometheus.Labels{
		"backend": backend,
		"status":  status,
	}).Observe(duration.Seconds())
}

func Prediction(class string) {
	predictionsTotal.With(prometheus.Labels{"class": class}).Inc()
}

// Middleware records request counts and latency keyed by the chi route
// pattern, so path parameters do not explode label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}

		HttpRequestsTotal(r.Method, path, strconv.Itoa(status))
		HttpRequestDuration(r.Method, path, time.Since(start))
	})
}
