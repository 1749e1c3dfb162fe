package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncActionResult is a no-op.
func (n *NoopRecorder) IncActionResult(action, kind string) {}

// ObserveActionDuration is a no-op.
func (n *NoopRecorder) ObserveActionDuration(action string, duration time.Duration) {}

// IncSignInThrottled is a no-op.
func (n *NoopRecorder) IncSignInThrottled() {}

// IncListSaved is a no-op.
func (n *NoopRecorder) IncListSaved() {}

// IncOptimizerRequest is a no-op.
func (n *NoopRecorder) IncOptimizerRequest(status string) {}

// ObserveOptimizerDuration is a no-op.
func (n *NoopRecorder) ObserveOptimizerDuration(duration time.Duration) {}
