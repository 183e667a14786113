package store

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	defaultJWTIssuer   = "moviecatalog"
	defaultJWTAudience = "moviecatalog-api"
	defaultJWTKeyID    = "hs-active"

	// MinJWTSecretLength is the shortest HMAC secret accepted.
	MinJWTSecretLength = 32
)

var defaultJWTLeeway = 30 * time.Second

// JWTOptions configures JWT claim validation behavior.
type JWTOptions struct {
	Issuer   string
	Audience string
	Leeway   time.Duration
	// KeyID names the active secret in the token header.
	KeyID string
	// PreviousSecrets maps retired key ids to secrets still accepted for
	// verification during rotation.
	PreviousSecrets map[string]string
	// Revoker enables logout and per-user revocation. Defaults to an
	// in-memory revoker.
	Revoker TokenRevoker
}

// JWTSessionStore issues and validates HS256 JWT tokens.
type JWTSessionStore struct {
	ttl time.Duration

	signerKid string
	secrets   map[string][]byte

	issuer   string
	audience string
	leeway   time.Duration
	revoker  TokenRevoker
	now      func() time.Time
}

// NewJWTSessionStore builds an HS256 session store.
func NewJWTSessionStore(secret string, ttl time.Duration, opts JWTOptions) (*JWTSessionStore, error) {
	if len(secret) < MinJWTSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes", MinJWTSecretLength)
	}
	if ttl <= 0 {
		return nil, errors.New("jwt ttl must be positive")
	}
	opts = normalizeJWTOptions(opts)
	secrets := map[string][]byte{opts.KeyID: []byte(secret)}
	for kid, prev := range opts.PreviousSecrets {
		kid = strings.TrimSpace(kid)
		if kid == "" || prev == "" || kid == opts.KeyID {
			continue
		}
		secrets[kid] = []byte(prev)
	}
	return &JWTSessionStore{
		ttl:       ttl,
		signerKid: opts.KeyID,
		secrets:   secrets,
		issuer:    opts.Issuer,
		audience:  opts.Audience,
		leeway:    opts.Leeway,
		revoker:   opts.Revoker,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// NewSession creates a signed JWT for the user ID.
func (s *JWTSessionStore) NewSession(userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("token subject required")
	}
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    s.issuer,
		Audience:  jwt.ClaimStrings{s.audience},
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ID:        randomHexID(12),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = s.signerKid
	return token.SignedString(s.secrets[s.signerKid])
}

// GetUserIDByToken validates a JWT and returns the subject.
func (s *JWTSessionStore) GetUserIDByToken(token string) (string, bool, error) {
	claims, err := s.parseAndVerify(token)
	if err != nil {
		return "", false, err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", false, errors.New("token subject missing")
	}
	revoked, err := s.revoker.IsRevoked(claims.ID)
	if err != nil {
		return "", false, err
	}
	if revoked {
		return "", false, errors.New("token revoked")
	}
	cutoff, err := s.revoker.RevokedAfter(claims.Subject)
	if err != nil {
		return "", false, err
	}
	if !cutoff.IsZero() && claims.IssuedAt.Time.UTC().Before(cutoff) {
		return "", false, errors.New("token revoked for user")
	}
	return claims.Subject, true, nil
}

// RevokeSession revokes the token until it expires. Invalid tokens are
// already unusable and are ignored.
func (s *JWTSessionStore) RevokeSession(token string) error {
	claims, err := s.parseAndVerify(token)
	if err != nil {
		return nil
	}
	ttl := claims.ExpiresAt.Time.Sub(s.now()) + s.leeway
	return s.revoker.Revoke(claims.ID, ttl)
}

// RevokeUserSessions rejects every token of userID issued before since.
func (s *JWTSessionStore) RevokeUserSessions(userID string, since time.Time) error {
	return s.revoker.RevokeUser(userID, since)
}

func (s *JWTSessionStore) parseAndVerify(token string) (jwt.RegisteredClaims, error) {
	claims := jwt.RegisteredClaims{}
	token = strings.TrimSpace(token)
	if token == "" {
		return claims, errors.New("invalid token format")
	}
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(s.leeway),
		jwt.WithTimeFunc(s.now),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
	}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		kid = strings.TrimSpace(kid)
		if kid == "" {
			return nil, errors.New("token key id required")
		}
		secret, ok := s.secrets[kid]
		if !ok {
			return nil, errors.New("unknown token key")
		}
		return secret, nil
	}, parserOptions...)
	if err != nil || !parsed.Valid {
		if err == nil {
			err = errors.New("invalid token")
		}
		return claims, err
	}
	if strings.TrimSpace(claims.ID) == "" {
		return claims, errors.New("token jti missing")
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return claims, errors.New("token iat and exp required")
	}
	return claims, nil
}

func randomHexID(nBytes int) string {
	buf := make([]byte, nBytes)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("%x", buf)
}

func normalizeJWTOptions(opts JWTOptions) JWTOptions {
	opts.Issuer = strings.TrimSpace(opts.Issuer)
	opts.Audience = strings.TrimSpace(opts.Audience)
	opts.KeyID = strings.TrimSpace(opts.KeyID)
	if opts.Issuer == "" {
		opts.Issuer = defaultJWTIssuer
	}
	if opts.Audience == "" {
		opts.Audience = defaultJWTAudience
	}
	if opts.Leeway <= 0 {
		opts.Leeway = defaultJWTLeeway
	}
	if opts.KeyID == "" {
		opts.KeyID = defaultJWTKeyID
	}
	if opts.Revoker == nil {
		opts.Revoker = NewMemoryTokenRevoker()
	}
	return opts
}
