package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Match levels.
const (
	LevelSearch = "search"
	LevelPage   = "page"
)

var (
	FetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modfinder_fetch_requests_total",
			Help: "Total number of HTTP requests issued, by crawl stage and outcome",
		},
		[]string{"stage", "status"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "modfinder_fetch_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"stage"},
	)

	FetchBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modfinder_fetch_bytes_total",
			Help: "Total body bytes read",
		},
		[]string{"stage"},
	)

	MatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modfinder_matches_total",
			Help: "Total number of download matches accepted",
		},
		[]string{"level"},
	)
)

// RecordFetch updates the request metrics. status is the HTTP status code,
// or "error" when no response arrived.
func RecordFetch(stage, status string, d time.Duration, bytes int) {
	FetchRequestsTotal.WithLabelValues(stage, status).Inc()
	FetchDuration.WithLabelValues(stage).Observe(d.Seconds())
	if bytes > 0 {
		FetchBytesTotal.WithLabelValues(stage).Add(float64(bytes))
	}
}

// RecordMatch counts an accepted match found at level.
func RecordMatch(level string) {
	MatchesTotal.WithLabelValues(level).Inc()
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
func Start(port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", srv.Addr, "err", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
