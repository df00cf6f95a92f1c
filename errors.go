package credgate

import "errors"

var (
	// ErrInvalidCredentials is returned for unknown usernames and wrong
	// passwords alike, so callers cannot enumerate accounts. The audit
	// stream carries the distinct internal reason.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountSuspended is returned when the account status is suspended,
	// regardless of password correctness.
	ErrAccountSuspended = errors.New("account suspended")
	// ErrPasswordResetRequired is returned when the account is flagged for a
	// forced password reset, before the password hash is consulted.
	ErrPasswordResetRequired = errors.New("password reset required")
	// ErrUserNotFound is returned by reset-token issuance when neither the
	// email nor the username lookup matched. Callers should normalize this
	// to a generic confirmation before presenting it.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidResetToken is returned when no user carries the presented
	// reset token, including tokens already redeemed.
	ErrInvalidResetToken = errors.New("invalid reset token")
	// ErrExpiredResetToken is returned when the presented token exists but
	// its expiry has passed. The stale token is left in place.
	ErrExpiredResetToken = errors.New("expired reset token")
	// ErrPasswordPolicy is returned when a new password fails the configured
	// policy.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrStoreUnavailable is the caller-safe surface for persistence-layer
	// failures. The underlying error is logged and audited, never returned.
	ErrStoreUnavailable = errors.New("credential backend unavailable")
	// ErrSessionNotFound is returned when a session id does not resolve to a
	// live session record.
	ErrSessionNotFound = errors.New("session not found")
	// ErrTokenInvalid is returned when a session cookie token fails
	// signature or shape validation.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrEngineNotReady is returned when the engine is used before Build
	// wired its dependencies.
	ErrEngineNotReady = errors.New("engine not initialized")
)
