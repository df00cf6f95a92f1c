package credgate

import (
	"context"
	"log"
)

// Login validates the username/password pair and returns the authenticated
// identity with its role labels attached.
//
// Unknown usernames and wrong passwords both fail with
// [ErrInvalidCredentials]; the two cases are indistinguishable to the
// caller. A wrong password increments the account's bad-login counter and
// persists it even though the call fails; reaching the configured threshold
// suspends the account as a side effect, with the attempt itself still
// failing as [ErrInvalidCredentials]. Suspended accounts fail with
// [ErrAccountSuspended] and accounts flagged for a forced reset fail with
// [ErrPasswordResetRequired], both before the password hash is consulted.
func (e *Engine) Login(ctx context.Context, username, plaintext string) (*Identity, error) {
	if e == nil || e.creds == nil || e.roles == nil || e.hasher == nil {
		return nil, ErrEngineNotReady
	}

	if username == "" || plaintext == "" {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"identifier": username,
				"reason":     "empty_input",
			}
		})
		return nil, ErrInvalidCredentials
	}

	user, err := e.creds.FindByUsername(ctx, username)
	if err != nil {
		log.Print("credgate: user lookup failed during login")
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrStoreUnavailable, func() map[string]string {
			return map[string]string{
				"identifier": username,
				"reason":     "store_error",
			}
		})
		return nil, ErrStoreUnavailable
	}
	if user == nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"identifier": username,
				"reason":     "user_not_found",
			}
		})
		return nil, ErrInvalidCredentials
	}

	if statusErr := accountStatusToError(user.Status); statusErr != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", statusErr, func() map[string]string {
			return map[string]string{
				"identifier": username,
				"reason":     "account_status",
			}
		})
		return nil, statusErr
	}
	if user.MustResetPassword {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", ErrPasswordResetRequired, func() map[string]string {
			return map[string]string{
				"identifier": username,
				"reason":     "reset_required",
			}
		})
		return nil, ErrPasswordResetRequired
	}

	// The hash comparison is the expensive step; it runs before any
	// per-user lock is taken.
	ok, err := e.hasher.Verify(plaintext, user.PasswordHash)
	if err != nil {
		log.Print("credgate: password verification failed during login")
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"identifier": username,
				"reason":     "hasher_error",
			}
		})
		return nil, ErrInvalidCredentials
	}
	if !ok {
		e.recordFailedAttempt(ctx, username, user)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"identifier": username,
				"reason":     "password_mismatch",
			}
		})
		return nil, ErrInvalidCredentials
	}

	updated, err := e.recordSuccessfulLogin(ctx, username, user.ID)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", err, func() map[string]string {
			return map[string]string{
				"identifier": username,
				"reason":     "telemetry_update",
			}
		})
		return nil, err
	}
	plaintext = ""

	roles, err := e.roles.RolesForUser(ctx, updated.ID)
	if err != nil {
		log.Print("credgate: role lookup failed during login")
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, updated.ID, "", ErrStoreUnavailable, func() map[string]string {
			return map[string]string{
				"identifier": username,
				"reason":     "role_lookup",
			}
		})
		return nil, ErrStoreUnavailable
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, updated.ID, "", nil, func() map[string]string {
		return map[string]string{
			"identifier": username,
		}
	})

	return &Identity{User: *updated, Roles: roles}, nil
}

// recordFailedAttempt persists the incremented bad-login counter and flips
// the account to suspended at the threshold. It never returns an error: a
// counter-persistence failure is logged and audited but must not mask the
// authentication failure the caller is about to report.
func (e *Engine) recordFailedAttempt(ctx context.Context, username string, fallback *UserRecord) {
	e.userLocks.Lock(fallback.ID)
	defer e.userLocks.Unlock(fallback.ID)

	user := fallback
	if fresh, err := e.creds.FindByUsername(ctx, username); err == nil && fresh != nil {
		user = fresh
	}

	user.BadLoginAttempts++
	suspended := false
	if user.BadLoginAttempts >= e.config.Login.MaxBadLogins && user.Status == AccountActive {
		user.Status = AccountSuspended
		suspended = true
	}

	if _, err := e.creds.Update(ctx, *user); err != nil {
		log.Print("credgate: bad-login counter persistence failed")
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", ErrStoreUnavailable, func() map[string]string {
			return map[string]string{
				"identifier": username,
				"reason":     "counter_persist_failed",
			}
		})
		return
	}

	if suspended {
		e.metricInc(MetricAccountSuspended)
		e.emitAudit(ctx, auditEventAccountSuspended, true, user.ID, "", nil, func() map[string]string {
			return map[string]string{
				"identifier": username,
			}
		})
	}
}

// recordSuccessfulLogin re-checks the account status against the freshest
// record, resets the bad-login counter, stamps last_login, and bumps the
// login count, all under the per-user lock.
func (e *Engine) recordSuccessfulLogin(ctx context.Context, username, userID string) (*UserRecord, error) {
	e.userLocks.Lock(userID)
	defer e.userLocks.Unlock(userID)

	user, err := e.creds.FindByUsername(ctx, username)
	if err != nil {
		log.Print("credgate: user re-fetch failed during login")
		return nil, ErrStoreUnavailable
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if statusErr := accountStatusToError(user.Status); statusErr != nil {
		// Status changed between the initial fetch and the hash match.
		return nil, statusErr
	}

	now := e.clock()
	user.BadLoginAttempts = 0
	user.LastLogin = &now
	user.LoginCount++

	updated, err := e.creds.Update(ctx, *user)
	if err != nil {
		log.Print("credgate: login telemetry persistence failed")
		return nil, ErrStoreUnavailable
	}

	return &updated, nil
}
