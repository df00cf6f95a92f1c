package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

func newHS256Manager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()

	m, err := NewManager(Config{
		TTL:           ttl,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("unit-test-signing-key"),
	})
	if err != nil {
		t.Fatalf("manager init failed: %v", err)
	}
	return m
}

func TestHS256RoundTrip(t *testing.T) {
	m := newHS256Manager(t, time.Hour)

	token, err := m.CreateSessionToken("sid-123")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	sid, err := m.ParseSessionToken(token)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if sid != "sid-123" {
		t.Errorf("sid = %q, want sid-123", sid)
	}
}

func TestEd25519RoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}

	m, err := NewManager(Config{
		TTL:           time.Hour,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
	})
	if err != nil {
		t.Fatalf("manager init failed: %v", err)
	}

	token, err := m.CreateSessionToken("sid-ed")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	sid, err := m.ParseSessionToken(token)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if sid != "sid-ed" {
		t.Errorf("sid = %q, want sid-ed", sid)
	}
}

func TestParseRejectsTampered(t *testing.T) {
	m := newHS256Manager(t, time.Hour)

	token, err := m.CreateSessionToken("sid-123")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("token has %d parts", len(parts))
	}
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	if _, err := m.ParseSessionToken(tampered); err == nil {
		t.Fatal("tampered token accepted")
	}
}

func TestParseRejectsWrongKey(t *testing.T) {
	m := newHS256Manager(t, time.Hour)
	other, err := NewManager(Config{
		TTL:           time.Hour,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("a-different-key"),
	})
	if err != nil {
		t.Fatalf("manager init failed: %v", err)
	}

	token, err := other.CreateSessionToken("sid-123")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := m.ParseSessionToken(token); err == nil {
		t.Fatal("token signed with a different key accepted")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	m := newHS256Manager(t, time.Hour)

	claims := SessionClaims{
		SID: "sid-123",
		RegisteredClaims: jwtlib.RegisteredClaims{
			IssuedAt:  jwtlib.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).
		SignedString([]byte("unit-test-signing-key"))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	if _, err := m.ParseSessionToken(token); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestParseRejectsMissingExpiry(t *testing.T) {
	m := newHS256Manager(t, time.Hour)

	claims := SessionClaims{SID: "sid-123"}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).
		SignedString([]byte("unit-test-signing-key"))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	if _, err := m.ParseSessionToken(token); err == nil {
		t.Fatal("token without exp accepted")
	}
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager(Config{SigningMethod: MethodHS256, PrivateKey: []byte("k")}); err == nil {
		t.Error("zero TTL accepted")
	}
	if _, err := NewManager(Config{TTL: time.Hour, SigningMethod: MethodHS256}); err == nil {
		t.Error("missing hs256 key accepted")
	}
	if _, err := NewManager(Config{TTL: time.Hour, SigningMethod: "rs256"}); err == nil {
		t.Error("unsupported method accepted")
	}
	if _, err := NewManager(Config{TTL: time.Hour, SigningMethod: MethodEd25519, PrivateKey: []byte("short")}); err == nil {
		t.Error("bad ed25519 key size accepted")
	}
}
