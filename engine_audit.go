package credgate

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess         = "login_success"
	auditEventLoginFailure         = "login_failure"
	auditEventAccountSuspended     = "account_suspended"
	auditEventPasswordResetRequest = "password_reset_request"
	auditEventPasswordResetConfirm = "password_reset_confirm"
	auditEventSessionCreated       = "session_created"
	auditEventLogoutSession        = "logout_session"
	auditEventLogoutAll            = "logout_all"
	auditEventSessionsReaped       = "sessions_reaped"
	auditEventGuardDenied          = "guard_denied"
)

// AuditErrorCode is the normalized error tag carried on audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials    AuditErrorCode = "invalid_credentials"
	auditErrAccountSuspended      AuditErrorCode = "account_suspended"
	auditErrPasswordResetRequired AuditErrorCode = "password_reset_required"
	auditErrUserNotFound          AuditErrorCode = "user_not_found"
	auditErrInvalidResetToken     AuditErrorCode = "invalid_reset_token"
	auditErrExpiredResetToken     AuditErrorCode = "expired_reset_token"
	auditErrPasswordPolicy        AuditErrorCode = "password_policy"
	auditErrSessionNotFound       AuditErrorCode = "session_not_found"
	auditErrInvalidToken          AuditErrorCode = "invalid_token"
	auditErrUnavailable           AuditErrorCode = "backend_unavailable"
	auditErrInternal              AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountSuspended):
		return auditErrAccountSuspended
	case errors.Is(err, ErrPasswordResetRequired):
		return auditErrPasswordResetRequired
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrInvalidResetToken):
		return auditErrInvalidResetToken
	case errors.Is(err, ErrExpiredResetToken):
		return auditErrExpiredResetToken
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrSessionNotFound):
		return auditErrSessionNotFound
	case errors.Is(err, ErrTokenInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
