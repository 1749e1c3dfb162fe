package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// ActionCount is the number of results of one kind for one action.
type ActionCount struct {
	Action string
	Kind   string
	Count  uint64
}

// Snapshot captures current in-memory counters.
type Snapshot struct {
	Actions                  []ActionCount // sorted by action, then kind
	ActionDurationCount      uint64
	ActionDurationTotalNs    int64
	SignInThrottled          uint64
	ListsSaved               uint64
	OptimizerSuccess         uint64
	OptimizerRetries         uint64
	OptimizerFailures        uint64
	OptimizerDurationCount   uint64
	OptimizerDurationTotalNs int64
}

// Count returns the recorded count for action and kind.
func (s Snapshot) Count(action, kind string) uint64 {
	for _, c := range s.Actions {
		if c.Action == action && c.Kind == kind {
			return c.Count
		}
	}
	return 0
}

type actionKey struct{ action, kind string }

// InMemoryRecorder stores metrics in memory.
type InMemoryRecorder struct {
	mu      sync.Mutex
	actions map[actionKey]uint64

	actionDurationCount      uint64
	actionDurationTotalNs    int64
	signInThrottled          uint64
	listsSaved               uint64
	optimizerSuccess         uint64
	optimizerRetries         uint64
	optimizerFailures        uint64
	optimizerDurationCount   uint64
	optimizerDurationTotalNs int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{actions: make(map[actionKey]uint64)}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	actions := make([]ActionCount, 0, len(m.actions))
	for k, v := range m.actions {
		actions = append(actions, ActionCount{Action: k.action, Kind: k.kind, Count: v})
	}
	m.mu.Unlock()

	sort.Slice(actions, func(i, j int) bool {
		if actions[i].Action != actions[j].Action {
			return actions[i].Action < actions[j].Action
		}
		return actions[i].Kind < actions[j].Kind
	})

	return Snapshot{
		Actions:                  actions,
		ActionDurationCount:      atomic.LoadUint64(&m.actionDurationCount),
		ActionDurationTotalNs:    atomic.LoadInt64(&m.actionDurationTotalNs),
		SignInThrottled:          atomic.LoadUint64(&m.signInThrottled),
		ListsSaved:               atomic.LoadUint64(&m.listsSaved),
		OptimizerSuccess:         atomic.LoadUint64(&m.optimizerSuccess),
		OptimizerRetries:         atomic.LoadUint64(&m.optimizerRetries),
		OptimizerFailures:        atomic.LoadUint64(&m.optimizerFailures),
		OptimizerDurationCount:   atomic.LoadUint64(&m.optimizerDurationCount),
		OptimizerDurationTotalNs: atomic.LoadInt64(&m.optimizerDurationTotalNs),
	}
}

// IncActionResult counts one action outcome.
func (m *InMemoryRecorder) IncActionResult(action, kind string) {
	m.mu.Lock()
	m.actions[actionKey{action, kind}]++
	m.mu.Unlock()
}

// ObserveActionDuration records action duration.
func (m *InMemoryRecorder) ObserveActionDuration(action string, duration time.Duration) {
	atomic.AddUint64(&m.actionDurationCount, 1)
	atomic.AddInt64(&m.actionDurationTotalNs, duration.Nanoseconds())
}

// IncSignInThrottled increments the throttled sign-in counter.
func (m *InMemoryRecorder) IncSignInThrottled() {
	atomic.AddUint64(&m.signInThrottled, 1)
}

// IncListSaved increments the saved list counter.
func (m *InMemoryRecorder) IncListSaved() {
	atomic.AddUint64(&m.listsSaved, 1)
}

// IncOptimizerRequest counts an optimizer call outcome.
func (m *InMemoryRecorder) IncOptimizerRequest(status string) {
	switch status {
	case "success":
		atomic.AddUint64(&m.optimizerSuccess, 1)
	case "retry":
		atomic.AddUint64(&m.optimizerRetries, 1)
	default:
		atomic.AddUint64(&m.optimizerFailures, 1)
	}
}

// ObserveOptimizerDuration records optimizer call duration.
func (m *InMemoryRecorder) ObserveOptimizerDuration(duration time.Duration) {
	atomic.AddUint64(&m.optimizerDurationCount, 1)
	atomic.AddInt64(&m.optimizerDurationTotalNs, duration.Nanoseconds())
}
