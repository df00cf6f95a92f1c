package credgate

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Config enumerates every option the engine recognizes. Unset sections fall
// back to the defaults documented on each field; Config values are treated
// as immutable after Build.
type Config struct {
	Login    LoginConfig
	Password PasswordConfig
	Reset    ResetConfig
	Session  SessionConfig
	Reaper   ReaperConfig
	Guard    GuardConfig
	Token    TokenConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

// LoginConfig tunes the login state machine.
type LoginConfig struct {
	// MaxBadLogins is the failed-attempt count at which the account is
	// suspended. Default 10.
	MaxBadLogins int
}

// PasswordConfig tunes the bundled bcrypt hasher and the password policy
// applied on reset.
type PasswordConfig struct {
	// Cost is the bcrypt cost factor. Default bcrypt.DefaultCost.
	Cost int
	// MinLength is the minimum accepted new-password length. Default 8.
	MinLength int
}

// ResetConfig tunes the password-reset protocol.
type ResetConfig struct {
	// TokenTTL is the reset-token lifetime. Default 24h.
	TokenTTL time.Duration
}

// SessionConfig tunes session persistence.
type SessionConfig struct {
	// RedisPrefix namespaces all session keys. Default "cg".
	RedisPrefix string
	// Lifetime is the session record lifetime. Default 12h.
	Lifetime time.Duration
	// SlidingExpiration extends the session expiry on each guarded request.
	SlidingExpiration bool
}

// ReaperConfig tunes the expired-session reaper.
type ReaperConfig struct {
	// Interval is the reap period. Default 60s.
	Interval time.Duration
}

// GuardConfig tunes the route guard surface consumed by the middleware.
type GuardConfig struct {
	// LoginPath is where denied requests are redirected. Default "/login".
	LoginPath string
	// CookieName carries the session token. Default "credgate_session".
	CookieName string
}

// TokenConfig configures the signed session-cookie token.
type TokenConfig struct {
	// SigningMethod is "hs256" (default) or "ed25519".
	SigningMethod string
	PrivateKey    []byte
	PublicKey     []byte
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process metrics counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the configuration the engine starts from when the
// caller sets nothing: threshold 10, 24h reset tokens, 60s reap interval.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Login: LoginConfig{
			MaxBadLogins: 10,
		},
		Password: PasswordConfig{
			Cost:      bcrypt.DefaultCost,
			MinLength: 8,
		},
		Reset: ResetConfig{
			TokenTTL: 24 * time.Hour,
		},
		Session: SessionConfig{
			RedisPrefix:       "cg",
			Lifetime:          12 * time.Hour,
			SlidingExpiration: false,
		},
		Reaper: ReaperConfig{
			Interval: 60 * time.Second,
		},
		Guard: GuardConfig{
			LoginPath:  "/login",
			CookieName: "credgate_session",
		},
		Token: TokenConfig{
			SigningMethod: "hs256",
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate reports the first configuration problem it finds.
func (c *Config) Validate() error {
	if c.Login.MaxBadLogins <= 0 {
		return errors.New("Login MaxBadLogins must be > 0")
	}

	if c.Password.Cost < bcrypt.MinCost || c.Password.Cost > bcrypt.MaxCost {
		return errors.New("Password Cost out of bcrypt range")
	}
	if c.Password.MinLength <= 0 {
		return errors.New("Password MinLength must be > 0")
	}

	if c.Reset.TokenTTL <= 0 {
		return errors.New("Reset TokenTTL must be > 0")
	}

	if strings.TrimSpace(c.Session.RedisPrefix) == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}
	if c.Session.Lifetime <= 0 {
		return errors.New("Session Lifetime must be > 0")
	}

	if c.Reaper.Interval <= 0 {
		return errors.New("Reaper Interval must be > 0")
	}

	if !strings.HasPrefix(c.Guard.LoginPath, "/") {
		return errors.New("Guard LoginPath must be an absolute path")
	}
	if strings.TrimSpace(c.Guard.CookieName) == "" {
		return errors.New("Guard CookieName must not be empty")
	}

	switch c.Token.SigningMethod {
	case "hs256":
		if len(c.Token.PrivateKey) == 0 {
			return errors.New("hs256 requires PrivateKey")
		}
	case "ed25519":
		if len(c.Token.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
		if len(c.Token.PublicKey) == 0 {
			return errors.New("ed25519 requires PublicKey")
		}
	default:
		return errors.New("unsupported token signing method")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}
