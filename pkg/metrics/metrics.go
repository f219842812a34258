// Package metrics exposes Prometheus counters for recovery attempts,
// interaction outcomes, scroll gestures and test results.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/whiteswan/mobile-e2e/pkg/logger"
)

const (
	MetricsNamespace = "ws_e2e"
)

var (
	recoveryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "recovery_attempts_total",
		Help:      "Count of recovery attempts by strategy",
	}, []string{
		"strategy",
	})

	recoveryOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "recovery_outcomes_total",
		Help:      "Count of recovery attempts by final state",
	}, []string{
		"state",
	})

	interactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "interactions_total",
		Help:      "Count of element interactions by method and result",
	}, []string{
		"method",
		"result",
	})

	scrollGestures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "scroll_gestures_total",
		Help:      "Count of scroll gestures by mechanism",
	}, []string{
		"mechanism",
	})

	testResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "test_results_total",
		Help:      "Count of finished tests by status",
	}, []string{
		"status",
	})

	testDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "test_duration_seconds",
		Help:      "Duration of test bodies including hooks",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{
		"status",
	})
)

// RecordRecoveryAttempt counts a recovery strategy execution.
func RecordRecoveryAttempt(strategy string) {
	recoveryAttempts.WithLabelValues(strategy).Inc()
}

// RecordRecoveryOutcome counts the state a recovery attempt ended in.
func RecordRecoveryOutcome(state string) {
	recoveryOutcomes.WithLabelValues(state).Inc()
}

// RecordInteraction counts an interaction result ("ok" or "error").
func RecordInteraction(method string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	interactions.WithLabelValues(method, result).Inc()
}

// RecordScroll counts one gesture ("native" or "pointer").
func RecordScroll(mechanism string) {
	scrollGestures.WithLabelValues(mechanism).Inc()
}

// RecordTestResult counts a finished test and observes its duration.
func RecordTestResult(status string, d time.Duration) {
	testResults.WithLabelValues(status).Inc()
	testDuration.WithLabelValues(status).Observe(d.Seconds())
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("[metrics] listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
