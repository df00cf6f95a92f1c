package credgate

import (
	"context"
	"time"
)

// AccountStatus represents the lifecycle state of a user account.
type AccountStatus uint8

const (
	// AccountActive is the normal state; login and reset are permitted.
	AccountActive AccountStatus = iota
	// AccountSuspended is entered when the bad-login threshold is reached,
	// or set administratively outside the engine. Suspended accounts are
	// rejected before the password hash is ever consulted.
	AccountSuspended
)

// UserRecord is the full account record exchanged with [CredentialStore].
// The engine mutates login telemetry and the reset-token pair; creation and
// deletion of records belong to the caller.
//
// ResetPasswordToken and ResetPasswordTokenExpires are both empty/nil or
// both set.
type UserRecord struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string

	Status            AccountStatus
	MustResetPassword bool

	BadLoginAttempts int
	LastLogin        *time.Time
	LoginCount       int

	ResetPasswordToken        string
	ResetPasswordTokenExpires *time.Time
}

// Identity is the authenticated user record plus its resolved role labels,
// returned by [Engine.Login].
type Identity struct {
	User  UserRecord
	Roles []string
}

// Decision is the result of [Engine.Authorize]. When Allowed is false,
// RequestedPath carries the originally requested path so the caller can
// redirect to a login entry point with a return-to parameter attached.
type Decision struct {
	Allowed       bool
	RequestedPath string
}

// CredentialStore is the persistence contract for user records. Lookups
// return (nil, nil) when no record matches; any non-nil error is treated as
// a store failure and never surfaced verbatim to callers of the engine.
//
// Update must perform a full-row replace keyed by ID and return the stored
// record.
type CredentialStore interface {
	FindByUsername(ctx context.Context, username string) (*UserRecord, error)
	FindByEmail(ctx context.Context, email string) (*UserRecord, error)
	FindByResetToken(ctx context.Context, token string) (*UserRecord, error)
	Update(ctx context.Context, user UserRecord) (UserRecord, error)
}

// RoleStore resolves the role labels assigned to a user. Read-only from the
// engine's perspective; labels are merged onto the identity after a
// successful login.
type RoleStore interface {
	RolesForUser(ctx context.Context, userID string) ([]string, error)
}

// PasswordHasher is the abstract one-way hash capability. Verify reports
// whether plaintext matches hash; an error means the hash could not be
// evaluated at all.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) (bool, error)
}
