package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any token that fails validation. Expired,
// malformed and badly-signed tokens are deliberately indistinguishable to
// the caller.
var ErrInvalidToken = errors.New("invalid token")

// TokenIssuer mints and validates signed bearer tokens
type TokenIssuer struct {
	secret         []byte
	defaultExpiry  time.Duration
	rememberExpiry time.Duration
}

// NewTokenIssuer creates a token issuer with the given signing secret and
// validity windows.
func NewTokenIssuer(secret string, defaultExpiry, rememberExpiry time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:         []byte(secret),
		defaultExpiry:  defaultExpiry,
		rememberExpiry: rememberExpiry,
	}
}

// Issue mints a token for the given user ID. With remember set the extended
// validity window is used instead of the default one.
func (t *TokenIssuer) Issue(userID string, remember bool) (string, error) {
	expiry := t.defaultExpiry
	if remember {
		expiry = t.rememberExpiry
	}
	return t.IssueWithExpiry(userID, expiry)
}

// IssueWithExpiry mints a token valid for the given duration
func (t *TokenIssuer) IssueWithExpiry(userID string, expiry time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
	})
	return token.SignedString(t.secret)
}

// Subject validates a token and returns the user ID it was issued for
func (t *TokenIssuer) Subject(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(tok *jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
