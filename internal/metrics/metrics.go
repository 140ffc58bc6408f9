// Package metrics defines the Prometheus collectors of the scoring service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// ScoresTotal counts scored transactions by outcome (anomaly or normal).
	ScoresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fraudlab_scores_total",
			Help: "Scored transactions by outcome",
		},
		[]string{"outcome"},
	)

	// ScoreValue observes raw model scores.
	ScoreValue = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fraudlab_score_value",
			Help:    "Distribution of model scores",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		},
	)

	// MissingFeaturesTotal counts requests rejected for missing features.
	MissingFeaturesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fraudlab_missing_features_total",
			Help: "Scoring requests rejected because required features were missing",
		},
	)

	// HistorySize observes how many past transactions fed each feature vector.
	HistorySize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fraudlab_history_size",
			Help:    "Number of history rows used per feature computation",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)

	// WebhookDeliveries counts alert deliveries by result.
	WebhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fraudlab_webhook_deliveries_total",
			Help: "Alert webhook deliveries by result",
		},
		[]string{"result"},
	)
)

// Outcome labels for ScoresTotal.
const (
	OutcomeAnomaly = "anomaly"
	OutcomeNormal  = "normal"
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency per chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "not_found"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := strconv.Itoa(ww.Status())
		httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
