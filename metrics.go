package credgate

import "sync/atomic"

// MetricID identifies a specific counter in the in-process metrics system.
type MetricID uint16

const (
	// MetricLoginSuccess counts successful logins.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts failed logins of any kind.
	MetricLoginFailure
	// MetricAccountSuspended counts bad-login-threshold suspensions.
	MetricAccountSuspended
	// MetricPasswordResetRequest counts issued reset tokens.
	MetricPasswordResetRequest
	// MetricPasswordResetSuccess counts redeemed reset tokens.
	MetricPasswordResetSuccess
	// MetricPasswordResetFailure counts rejected redemption attempts.
	MetricPasswordResetFailure
	// MetricSessionCreated counts established sessions.
	MetricSessionCreated
	// MetricSessionInvalidated counts sessions destroyed by logout.
	MetricSessionInvalidated
	// MetricSessionsReaped counts session records removed by the reaper.
	MetricSessionsReaped
	// MetricGuardAllowed counts route-guard passes.
	MetricGuardAllowed
	// MetricGuardDenied counts route-guard denials.
	MetricGuardDenied

	metricIDCount
)

// Metrics holds atomic counters for the engine's observable events. A nil
// or disabled Metrics turns every operation into a no-op.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]atomic.Uint64
}

// NewMetrics creates a Metrics instance configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc increments the counter identified by id.
func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

// Add increments the counter identified by id by delta.
func (m *Metrics) Add(id MetricID, delta uint64) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	m.counters[id].Add(delta)
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// Snapshot returns a deep copy of the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Counters: make(map[MetricID]uint64, int(metricIDCount)),
	}
	if m == nil || !m.enabled {
		return snap
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		snap.Counters[id] = m.counters[id].Load()
	}
	return snap
}
