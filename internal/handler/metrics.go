package handler

import (
	"fmt"
	"net/http"

	"github.com/liiist/liiist/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
// GET /metrics
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	for _, c := range snap.Actions {
		writeMetric(w, "liiist_action_results_total{action=%q,kind=%q} %d\n", c.Action, c.Kind, c.Count)
	}
	writeMetric(w, "liiist_action_duration_seconds_count %d\n", snap.ActionDurationCount)
	writeMetric(w, "liiist_action_duration_seconds_sum %.6f\n", float64(snap.ActionDurationTotalNs)/1e9)

	writeMetric(w, "liiist_sign_in_throttled_total %d\n", snap.SignInThrottled)
	writeMetric(w, "liiist_lists_saved_total %d\n", snap.ListsSaved)

	writeMetric(w, "liiist_optimizer_requests_total{status=\"success\"} %d\n", snap.OptimizerSuccess)
	writeMetric(w, "liiist_optimizer_requests_total{status=\"retry\"} %d\n", snap.OptimizerRetries)
	writeMetric(w, "liiist_optimizer_requests_total{status=\"failed\"} %d\n", snap.OptimizerFailures)
	writeMetric(w, "liiist_optimizer_duration_seconds_count %d\n", snap.OptimizerDurationCount)
	writeMetric(w, "liiist_optimizer_duration_seconds_sum %.6f\n", float64(snap.OptimizerDurationTotalNs)/1e9)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
