package credgate

import (
	"context"
	"errors"
	"log"

	"github.com/kyralis/credgate/internal"
	"github.com/kyralis/credgate/session"
)

// EstablishSession persists a session record for identity and returns it
// together with the signed cookie token that references it.
func (e *Engine) EstablishSession(ctx context.Context, identity *Identity) (*session.Session, string, error) {
	if e == nil || e.sessionStore == nil || e.tokens == nil {
		return nil, "", ErrEngineNotReady
	}
	if identity == nil || identity.User.ID == "" {
		return nil, "", ErrUserNotFound
	}

	sid, err := internal.NewSessionID()
	if err != nil {
		log.Print("credgate: session id generation failed")
		return nil, "", ErrStoreUnavailable
	}

	now := e.clock()
	sess := &session.Session{
		SessionID: sid.String(),
		UserID:    identity.User.ID,
		Username:  identity.User.Username,
		Roles:     identity.Roles,
		Status:    uint8(identity.User.Status),
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(e.config.Session.Lifetime).Unix(),
	}

	if err := e.sessionStore.Save(ctx, sess); err != nil {
		log.Print("credgate: session persistence failed")
		e.emitAudit(ctx, auditEventSessionCreated, false, identity.User.ID, sess.SessionID, ErrStoreUnavailable, nil)
		return nil, "", ErrStoreUnavailable
	}

	token, err := e.tokens.CreateSessionToken(sess.SessionID)
	if err != nil {
		_, _ = e.sessionStore.Delete(ctx, sess.SessionID)
		e.emitAudit(ctx, auditEventSessionCreated, false, identity.User.ID, sess.SessionID, ErrTokenInvalid, nil)
		return nil, "", ErrTokenInvalid
	}

	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventSessionCreated, true, identity.User.ID, sess.SessionID, nil, nil)

	return sess, token, nil
}

// SessionFromToken verifies a cookie token and loads the session record it
// references. Expired or missing sessions fail with [ErrSessionNotFound].
func (e *Engine) SessionFromToken(ctx context.Context, token string) (*session.Session, error) {
	if e == nil || e.sessionStore == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}

	sid, err := e.tokens.ParseSessionToken(token)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	sess, err := e.sessionStore.Get(ctx, sid)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrExpired):
			return nil, ErrSessionNotFound
		default:
			log.Print("credgate: session fetch failed")
			return nil, ErrStoreUnavailable
		}
	}
	return sess, nil
}

// TouchSession extends the session expiry by the configured lifetime and
// re-issues the cookie token so its signed expiry follows the record's.
// Without the fresh token the cookie would still die at the original
// lifetime. Used by the middleware when sliding expiration is enabled.
func (e *Engine) TouchSession(ctx context.Context, sessionID string) (*session.Session, string, error) {
	if e == nil || e.sessionStore == nil || e.tokens == nil {
		return nil, "", ErrEngineNotReady
	}

	sess, err := e.sessionStore.Touch(ctx, sessionID, e.config.Session.Lifetime)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrExpired):
			return nil, "", ErrSessionNotFound
		default:
			return nil, "", ErrStoreUnavailable
		}
	}

	token, err := e.tokens.CreateSessionToken(sess.SessionID)
	if err != nil {
		return nil, "", ErrTokenInvalid
	}
	return sess, token, nil
}

// Logout destroys a single session. Logging out an absent session is not
// an error and is not counted as an invalidation.
func (e *Engine) Logout(ctx context.Context, sessionID string) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}

	existed, err := e.sessionStore.Delete(ctx, sessionID)
	if err == nil && existed {
		e.metricInc(MetricSessionInvalidated)
	}
	e.emitAudit(ctx, auditEventLogoutSession, err == nil, "", sessionID, err, nil)
	return err
}

// LogoutAllForUser destroys every session belonging to userID.
func (e *Engine) LogoutAllForUser(ctx context.Context, userID string) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}

	err := e.sessionStore.DeleteAllForUser(ctx, userID)
	if err == nil {
		e.metricInc(MetricSessionInvalidated)
	}
	e.emitAudit(ctx, auditEventLogoutAll, err == nil, userID, "", err, nil)
	return err
}

// Authorize is the route guard: a pure predicate over the session as last
// known at session-creation or refresh time. It denies when no session is
// present, when the session carries no identity, or when that identity's
// status is not active. The denial carries requestedPath so the caller can
// redirect to a login entry point with a return-to parameter. Authorize
// never mutates the session and never re-fetches the user record.
func (e *Engine) Authorize(ctx context.Context, sess *session.Session, requestedPath string) Decision {
	denied := Decision{Allowed: false, RequestedPath: requestedPath}

	if sess == nil || sess.UserID == "" {
		e.metricInc(MetricGuardDenied)
		e.emitAudit(ctx, auditEventGuardDenied, false, "", "", ErrSessionNotFound, func() map[string]string {
			return map[string]string{"path": requestedPath}
		})
		return denied
	}
	if AccountStatus(sess.Status) != AccountActive {
		e.metricInc(MetricGuardDenied)
		e.emitAudit(ctx, auditEventGuardDenied, false, sess.UserID, sess.SessionID, ErrAccountSuspended, func() map[string]string {
			return map[string]string{"path": requestedPath}
		})
		return denied
	}

	e.metricInc(MetricGuardAllowed)
	return Decision{Allowed: true, RequestedPath: requestedPath}
}

// GuardSettings exposes the configured guard surface to the middleware.
func (e *Engine) GuardSettings() GuardConfig {
	if e == nil {
		return GuardConfig{}
	}
	return e.config.Guard
}

// SlidingExpiration reports whether guarded requests should extend the
// session expiry.
func (e *Engine) SlidingExpiration() bool {
	if e == nil {
		return false
	}
	return e.config.Session.SlidingExpiration
}
