package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters for the HTTP layer and the
// analysis engine.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64

	runsStarted   int64
	runsCompleted int64
	runsFailed    int64
	runsRejected  int64

	alertsCreated int64
	alertsUpdated int64

	lifecycleActions map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:     make(map[string]int64),
		errorCount:       make(map[string]int64),
		lifecycleActions: make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + strconv.Itoa(status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordRunStarted counts an analysis pass that began executing.
func (m *Metrics) RecordRunStarted() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runsStarted++
}

// RecordRunCompleted counts a finished pass and its write volume.
func (m *Metrics) RecordRunCompleted(created, updated int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runsCompleted++
	m.alertsCreated += int64(created)
	m.alertsUpdated += int64(updated)
}

// RecordRunFailed counts an aborted pass.
func (m *Metrics) RecordRunFailed() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runsFailed++
}

// RecordRunRejected counts a trigger coalesced into an in-flight pass.
func (m *Metrics) RecordRunRejected() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runsRejected++
}

// RecordLifecycleAction counts acknowledge/resolve/dismiss outcomes.
func (m *Metrics) RecordLifecycleAction(action string, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "rejected"
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lifecycleActions[action+"|"+outcome]++
}
