package store

import (
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestSessionStore(t *testing.T, opts JWTOptions) *JWTSessionStore {
	t.Helper()
	s, err := NewJWTSessionStore(testSecret, time.Hour, opts)
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	return s
}

func TestJWTSessionStoreRoundTrip(t *testing.T) {
	s := newTestSessionStore(t, JWTOptions{})
	token, err := s.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	userID, ok, err := s.GetUserIDByToken(token)
	if err != nil || !ok || userID != "user-1" {
		t.Fatalf("unexpected verify result: ok=%v userID=%q err=%v", ok, userID, err)
	}
}

func TestJWTSessionStoreRejectsShortSecret(t *testing.T) {
	if _, err := NewJWTSessionStore("short", time.Hour, JWTOptions{}); err == nil {
		t.Fatalf("expected short secret to be rejected")
	}
	if _, err := NewJWTSessionStore(testSecret, 0, JWTOptions{}); err == nil {
		t.Fatalf("expected zero ttl to be rejected")
	}
}

func TestJWTSessionStoreEnforcesAudience(t *testing.T) {
	signing := newTestSessionStore(t, JWTOptions{Issuer: "issuer-a", Audience: "aud-a"})
	verify := newTestSessionStore(t, JWTOptions{Issuer: "issuer-a", Audience: "aud-b"})

	token, err := signing.NewSession("user-claim")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, _, err := verify.GetUserIDByToken(token); err == nil {
		t.Fatalf("expected audience mismatch to fail")
	}
}

func TestJWTSessionStoreRejectsExpiredToken(t *testing.T) {
	s := newTestSessionStore(t, JWTOptions{Leeway: time.Second})
	issued := time.Now().UTC().Add(-2 * time.Hour)
	s.now = func() time.Time { return issued }
	token, err := s.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	s.now = func() time.Time { return time.Now().UTC() }
	if _, ok, err := s.GetUserIDByToken(token); err == nil || ok {
		t.Fatalf("expected expired token to fail, ok=%v err=%v", ok, err)
	}
}

func TestJWTSessionStoreRejectsOtherSigningMethods(t *testing.T) {
	s := newTestSessionStore(t, JWTOptions{})
	claims := jwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    defaultJWTIssuer,
		Audience:  jwt.ClaimStrings{defaultJWTAudience},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		ID:        "jti",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	token.Header["kid"] = defaultJWTKeyID
	raw, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}
	if _, ok, err := s.GetUserIDByToken(raw); err == nil || ok {
		t.Fatalf("expected alg=none token to fail")
	}
}

func TestJWTSessionStoreVerifiesPreviousKeyDuringRotation(t *testing.T) {
	oldSecret := strings.Repeat("o", MinJWTSecretLength)
	oldStore, err := NewJWTSessionStore(oldSecret, time.Hour, JWTOptions{KeyID: "kid-old"})
	if err != nil {
		t.Fatalf("old store: %v", err)
	}
	token, err := oldStore.NewSession("user-rotated")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	rotated := newTestSessionStore(t, JWTOptions{
		KeyID:           "kid-new",
		PreviousSecrets: map[string]string{"kid-old": oldSecret},
	})
	userID, ok, err := rotated.GetUserIDByToken(token)
	if err != nil || !ok || userID != "user-rotated" {
		t.Fatalf("expected rotated store to accept previous key: ok=%v userID=%q err=%v", ok, userID, err)
	}

	fresh := newTestSessionStore(t, JWTOptions{KeyID: "kid-new"})
	if _, _, err := fresh.GetUserIDByToken(token); err == nil {
		t.Fatalf("expected unknown kid to fail")
	}
}

func TestJWTSessionStoreRejectsGarbage(t *testing.T) {
	s := newTestSessionStore(t, JWTOptions{})
	for _, raw := range []string{"", "   ", "not.a.jwt"} {
		if _, ok, err := s.GetUserIDByToken(raw); err == nil || ok {
			t.Fatalf("expected %q to fail", raw)
		}
	}
}

func TestJWTSessionStoreRevokeSession(t *testing.T) {
	s := newTestSessionStore(t, JWTOptions{})
	token, err := s.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	other, err := s.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := s.RevokeSession(token); err != nil {
		t.Fatalf("revoke session: %v", err)
	}
	if _, ok, err := s.GetUserIDByToken(token); err == nil || ok {
		t.Fatalf("expected revoked token to fail")
	}
	if _, ok, err := s.GetUserIDByToken(other); err != nil || !ok {
		t.Fatalf("expected sibling token to survive: ok=%v err=%v", ok, err)
	}
	if err := s.RevokeSession("not.a.jwt"); err != nil {
		t.Fatalf("revoking garbage should be a no-op: %v", err)
	}
}

func TestJWTSessionStoreRevokeUserSessions(t *testing.T) {
	s := newTestSessionStore(t, JWTOptions{})
	issued := time.Now().UTC().Add(-10 * time.Minute)
	s.now = func() time.Time { return issued }
	old, err := s.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	s.now = func() time.Time { return time.Now().UTC() }
	if err := s.RevokeUserSessions("user-1", issued.Add(time.Minute)); err != nil {
		t.Fatalf("revoke user sessions: %v", err)
	}
	if _, ok, err := s.GetUserIDByToken(old); err == nil || ok {
		t.Fatalf("expected token issued before cutoff to fail")
	}
	fresh, err := s.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, ok, err := s.GetUserIDByToken(fresh); err != nil || !ok {
		t.Fatalf("expected token issued after cutoff to pass: ok=%v err=%v", ok, err)
	}
}
