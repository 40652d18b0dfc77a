package signing

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenInvalid is returned for malformed or tampered tokens.
	ErrTokenInvalid = errors.New("invalid feed token")
	// ErrTokenExpired is returned when a well-formed token is past its expiry.
	ErrTokenExpired = errors.New("feed token expired")
)

// FeedClaims is the payload carried by a calendar feed token.
type FeedClaims struct {
	Subject   string
	Scope     string
	ExpiresAt time.Time
}

type feedTokenClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// FeedSigner issues and verifies HS256 tokens used for unauthenticated
// calendar subscription URLs.
type FeedSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewFeedSigner constructs a signer with the provided secret and TTL.
func NewFeedSigner(secret string, ttl time.Duration) *FeedSigner {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &FeedSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock overrides the time source.
func (s *FeedSigner) WithClock(now func() time.Time) *FeedSigner {
	if now != nil {
		s.now = now
	}
	return s
}

// Issue returns a token for subject limited to scope.
func (s *FeedSigner) Issue(subject, scope string) (string, time.Time, error) {
	if subject == "" || scope == "" {
		return "", time.Time{}, fmt.Errorf("subject and scope required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	issuedAt := s.now().UTC().Truncate(time.Second)
	expiresAt := s.now().Add(s.ttl).UTC().Truncate(time.Second)
	claims := feedTokenClaims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign feed token: %w", err)
	}
	return token, expiresAt, nil
}

// Verify validates the signature and expiry of token and checks scope. An
// expired token still returns its claims alongside ErrTokenExpired.
func (s *FeedSigner) Verify(token, scope string) (FeedClaims, error) {
	claims := &feedTokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)

	out := FeedClaims{Subject: claims.Subject, Scope: claims.Scope}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		if claims.Scope != scope {
			return FeedClaims{}, ErrTokenInvalid
		}
		return out, ErrTokenExpired
	case err != nil:
		return FeedClaims{}, ErrTokenInvalid
	case claims.Scope != scope || claims.Subject == "":
		return FeedClaims{}, ErrTokenInvalid
	}
	return out, nil
}
