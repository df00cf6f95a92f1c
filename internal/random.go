package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

// SessionID is a 16-byte random session identifier.
type SessionID [16]byte

const resetTokenSize = 32

// NewSessionID returns a fresh random session identifier.
func NewSessionID() (SessionID, error) {
	var sid SessionID
	_, err := rand.Read(sid[:])
	return sid, err
}

func (s SessionID) Bytes() []byte {
	return s[:]
}

func (s SessionID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(s[:])
}

// ParseSessionID decodes the string form produced by [SessionID.String].
func ParseSessionID(sessionID string) (SessionID, error) {
	var sid SessionID

	raw, err := base64.RawURLEncoding.DecodeString(sessionID)
	if err != nil {
		return sid, err
	}
	if len(raw) != len(sid) {
		return sid, errors.New("invalid session id size")
	}

	copy(sid[:], raw)
	return sid, nil
}

// NewResetToken returns an opaque reset token with 256 bits of entropy,
// encoded base64url without padding.
func NewResetToken() (string, error) {
	var raw [resetTokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}
