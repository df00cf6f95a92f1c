// Package jwt signs and verifies the compact session-cookie token. The
// token carries only the session id; everything else lives in the
// server-side session record.
package jwt

import (
	"crypto/ed25519"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the token signature algorithm.
type SigningMethod string

const (
	// MethodHS256 signs with a shared secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 key pair.
	MethodEd25519 SigningMethod = "ed25519"
)

// Config configures a Manager.
type Config struct {
	TTL           time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
}

// SessionClaims is the claim set carried by the session token.
type SessionClaims struct {
	SID string `json:"sid"`
	jwt.RegisteredClaims
}

// Manager issues and parses session tokens.
type Manager struct {
	config Config
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires private key")
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) != ed25519.PrivateKeySize {
			return nil, errors.New("invalid ed25519 private key size")
		}
		if len(cfg.PublicKey) != ed25519.PublicKeySize {
			return nil, errors.New("invalid ed25519 public key size")
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return &Manager{config: cfg}, nil
}

// CreateSessionToken signs a token binding sid for the configured TTL.
func (m *Manager) CreateSessionToken(sid string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		SID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TTL)),
		},
	}

	switch m.config.SigningMethod {
	case MethodEd25519:
		token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
		return token.SignedString(ed25519.PrivateKey(m.config.PrivateKey))
	default:
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		return token.SignedString(m.config.PrivateKey)
	}
}

// ParseSessionToken verifies tokenStr and returns the bound session id.
func (m *Manager) ParseSessionToken(tokenStr string) (string, error) {
	var methods []string
	switch m.config.SigningMethod {
	case MethodEd25519:
		methods = []string{jwt.SigningMethodEdDSA.Alg()}
	default:
		methods = []string{jwt.SigningMethodHS256.Alg()}
	}

	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		switch m.config.SigningMethod {
		case MethodEd25519:
			return ed25519.PublicKey(m.config.PublicKey), nil
		default:
			return m.config.PrivateKey, nil
		}
	}, jwt.WithValidMethods(methods), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	if claims.SID == "" {
		return "", errors.New("token missing session id")
	}

	return claims.SID, nil
}
