package credgate

import (
	"context"
	"log"
	"strconv"
	"time"
)

// ReapExpiredSessions deletes every session record whose expiry is at or
// before the current time and returns the number of records removed.
func (e *Engine) ReapExpiredSessions(ctx context.Context) (int, error) {
	if e == nil || e.sessionStore == nil {
		return 0, ErrEngineNotReady
	}

	removed, err := e.sessionStore.DeleteExpired(ctx, e.clock())
	if err != nil {
		log.Print("credgate: expired session reap failed")
		e.emitAudit(ctx, auditEventSessionsReaped, false, "", "", ErrStoreUnavailable, nil)
		return removed, ErrStoreUnavailable
	}

	if removed > 0 {
		e.metricAdd(MetricSessionsReaped, uint64(removed))
		e.emitAudit(ctx, auditEventSessionsReaped, true, "", "", nil, func() map[string]string {
			return map[string]string{
				"removed": strconv.Itoa(removed),
			}
		})
	}

	return removed, nil
}

// RunSessionReaper invokes ReapExpiredSessions on the configured interval
// until ctx is cancelled. A failed tick is logged by the reap itself and
// never terminates the loop.
func (e *Engine) RunSessionReaper(ctx context.Context) {
	if e == nil || e.sessionStore == nil {
		return
	}

	interval := e.config.Reaper.Interval
	if interval <= 0 {
		interval = 60 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = e.ReapExpiredSessions(ctx)
		}
	}
}
