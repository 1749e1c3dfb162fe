// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Action metrics. kind is the action.Kind name ("success", "invalid", ...).
	IncActionResult(action, kind string)
	ObserveActionDuration(action string, duration time.Duration)

	// Sign-in attempts rejected by the rate limiter.
	IncSignInThrottled()

	// Shopping lists
	IncListSaved()

	// Optimizer calls. status: "success", "retry" or "failed".
	IncOptimizerRequest(status string)
	ObserveOptimizerDuration(duration time.Duration)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
