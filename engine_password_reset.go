package credgate

import (
	"context"
	"log"

	"github.com/kyralis/credgate/internal"
)

// GenerateResetPasswordToken issues a fresh single-use reset token for the
// user matching identifier and returns the updated record with the live
// token embedded. The caller is responsible for transmitting the token
// out-of-band.
//
// The identifier is matched against email first and username second; the
// ordering is policy, not accident. Issuing a new token overwrites any
// outstanding one, so at most one token is redeemable per user at a time.
func (e *Engine) GenerateResetPasswordToken(ctx context.Context, identifier string) (*UserRecord, error) {
	if e == nil || e.creds == nil {
		return nil, ErrEngineNotReady
	}
	if identifier == "" {
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, "", "", ErrUserNotFound, func() map[string]string {
			return map[string]string{"reason": "empty_identifier"}
		})
		return nil, ErrUserNotFound
	}

	user, err := e.creds.FindByEmail(ctx, identifier)
	if err != nil {
		log.Print("credgate: email lookup failed during reset request")
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, "", "", ErrStoreUnavailable, nil)
		return nil, ErrStoreUnavailable
	}
	if user == nil {
		user, err = e.creds.FindByUsername(ctx, identifier)
		if err != nil {
			log.Print("credgate: username lookup failed during reset request")
			e.emitAudit(ctx, auditEventPasswordResetRequest, false, "", "", ErrStoreUnavailable, nil)
			return nil, ErrStoreUnavailable
		}
	}
	if user == nil {
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, "", "", ErrUserNotFound, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
				"reason":     "user_not_found",
			}
		})
		return nil, ErrUserNotFound
	}

	token, err := internal.NewResetToken()
	if err != nil {
		log.Print("credgate: reset token generation failed")
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, user.ID, "", ErrStoreUnavailable, nil)
		return nil, ErrStoreUnavailable
	}

	e.userLocks.Lock(user.ID)
	defer e.userLocks.Unlock(user.ID)

	if fresh, err := e.creds.FindByUsername(ctx, user.Username); err == nil && fresh != nil {
		user = fresh
	}

	expires := e.clock().Add(e.config.Reset.TokenTTL)
	user.ResetPasswordToken = token
	user.ResetPasswordTokenExpires = &expires

	updated, err := e.creds.Update(ctx, *user)
	if err != nil {
		log.Print("credgate: reset token persistence failed")
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, user.ID, "", ErrStoreUnavailable, nil)
		return nil, ErrStoreUnavailable
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, updated.ID, "", nil, nil)

	return &updated, nil
}

// ResetPassword redeems token exactly once: the new password is hashed and
// stored, the forced-reset flag and both token fields are cleared, and the
// bad-login counter is zeroed. A second call with the same token fails with
// [ErrInvalidResetToken]; an expired token fails with
// [ErrExpiredResetToken] and is left in place untouched.
//
// Redemption also invalidates the user's existing sessions, best-effort.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) (*UserRecord, error) {
	if e == nil || e.creds == nil || e.hasher == nil {
		return nil, ErrEngineNotReady
	}
	if token == "" {
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, "", "", ErrInvalidResetToken, func() map[string]string {
			return map[string]string{"reason": "empty_token"}
		})
		return nil, ErrInvalidResetToken
	}
	if len(newPassword) < e.config.Password.MinLength {
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, "", "", ErrPasswordPolicy, func() map[string]string {
			return map[string]string{"reason": "password_too_short"}
		})
		return nil, ErrPasswordPolicy
	}

	user, err := e.lookupByResetToken(ctx, token)
	if err != nil {
		return nil, err
	}

	// Hashing runs outside the per-user lock; it is the expensive step.
	newHash, err := e.hasher.Hash(newPassword)
	if err != nil {
		log.Print("credgate: password hashing failed during reset")
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, user.ID, "", ErrPasswordPolicy, func() map[string]string {
			return map[string]string{"reason": "hash_failed"}
		})
		return nil, ErrPasswordPolicy
	}
	newPassword = ""

	e.userLocks.Lock(user.ID)
	defer e.userLocks.Unlock(user.ID)

	// Re-resolve under the lock so a concurrent redemption of the same
	// token fails here instead of applying twice.
	user, err = e.lookupByResetToken(ctx, token)
	if err != nil {
		return nil, err
	}

	user.PasswordHash = newHash
	user.MustResetPassword = false
	user.ResetPasswordToken = ""
	user.ResetPasswordTokenExpires = nil
	user.BadLoginAttempts = 0

	updated, err := e.creds.Update(ctx, *user)
	if err != nil {
		log.Print("credgate: password reset persistence failed")
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, user.ID, "", ErrStoreUnavailable, nil)
		return nil, ErrStoreUnavailable
	}

	if e.sessionStore != nil {
		// Best-effort: a stolen session must not outlive the credential
		// it was minted with.
		if err := e.sessionStore.DeleteAllForUser(ctx, updated.ID); err != nil {
			log.Print("credgate: session invalidation failed after password reset")
		}
	}

	e.metricInc(MetricPasswordResetSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, updated.ID, "", nil, nil)

	return &updated, nil
}

func (e *Engine) lookupByResetToken(ctx context.Context, token string) (*UserRecord, error) {
	user, err := e.creds.FindByResetToken(ctx, token)
	if err != nil {
		log.Print("credgate: token lookup failed during reset")
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, "", "", ErrStoreUnavailable, nil)
		return nil, ErrStoreUnavailable
	}
	if user == nil || user.ResetPasswordToken != token || user.ResetPasswordTokenExpires == nil {
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, "", "", ErrInvalidResetToken, func() map[string]string {
			return map[string]string{"reason": "token_not_found"}
		})
		return nil, ErrInvalidResetToken
	}
	if !e.clock().Before(*user.ResetPasswordTokenExpires) {
		// The stale token stays in place; no transition on an expired read.
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, user.ID, "", ErrExpiredResetToken, nil)
		return nil, ErrExpiredResetToken
	}
	return user, nil
}
