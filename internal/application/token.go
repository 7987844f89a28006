package application

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenIssuer signs and verifies the stateless access tokens handed to
// clients after login. Refresh tokens stay opaque and persisted; only the
// short-lived access token is a JWT.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer constructs an issuer with the given HMAC secret and token
// lifetime.
func NewTokenIssuer(secret string, ttl time.Duration, now func() time.Time) *TokenIssuer {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: now}
}

// Issue produces a signed access token for the user.
func (t *TokenIssuer) Issue(user User) (token string, expiresAt time.Time, err error) {
	if t == nil {
		return "", time.Time{}, fmt.Errorf("TokenIssuer is nil")
	}
	issuedAt := t.now().UTC()
	expiresAt = issuedAt.Add(t.ttl)

	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"iat":   issuedAt.Unix(),
		"exp":   expiresAt.Unix(),
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Verify parses the token and returns the principal it identifies.
func (t *TokenIssuer) Verify(token string) (Principal, error) {
	if t == nil {
		return Principal{}, ErrUnauthorized
	}
	parsed, err := jwt.Parse(token, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Principal{}, ErrSessionExpired
		}
		return Principal{}, ErrUnauthorized
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return Principal{}, ErrUnauthorized
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Principal{}, ErrUnauthorized
	}
	email, _ := claims["email"].(string)
	return Principal{UserID: sub, Email: email}, nil
}
