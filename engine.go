package credgate

import (
	"time"

	"github.com/kyralis/credgate/internal/keyed"
	"github.com/kyralis/credgate/jwt"
	"github.com/kyralis/credgate/session"
)

// Engine is the credential-and-session lifecycle engine. Engines are
// configured during initialization via [Builder] and treated as immutable
// afterwards; all operations are safe for concurrent use.
//
// Per-user mutations (bad-login increments, suspension, token issuance and
// redemption, password updates) are serialized through a per-user-id lock,
// so two concurrent logins against the same account cannot race past the
// bad-login counter or double-apply a reset. Password hashing and
// verification always run outside that lock.
type Engine struct {
	config       Config
	creds        CredentialStore
	roles        RoleStore
	hasher       PasswordHasher
	sessionStore *session.Store
	tokens       *jwt.Manager
	audit        *auditDispatcher
	metrics      *Metrics
	userLocks    *keyed.Mutex

	// now is the engine clock; overridable in tests.
	now func() time.Time
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// dispatch buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricAdd(id MetricID, delta uint64) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Add(id, delta)
}

func (e *Engine) clock() time.Time {
	if e.now != nil {
		return e.now().UTC()
	}
	return time.Now().UTC()
}

func accountStatusToError(status AccountStatus) error {
	if status == AccountActive {
		return nil
	}
	return ErrAccountSuspended
}
