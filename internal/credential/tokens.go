package credential

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// refreshTokenBytes is the entropy of a refresh token (hex encoded to 64 chars).
const refreshTokenBytes = 32

// AccessClaims are the claims carried by an access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// tokenIssuer signs and parses access tokens and mints refresh tokens.
type tokenIssuer struct {
	secret []byte
	issuer string
}

// signAccess creates an HS256 access token for userID valid until exp.
// Every token carries a fresh ULID as jti, so two tokens minted in the same
// second still differ.
func (t *tokenIssuer) signAccess(userID, email string, now, exp time.Time) (string, error) {
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   userID,
			ID:        ulid.Make().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email: email,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// parseAccess validates an access token and returns its claims.
func (t *tokenIssuer) parseAccess(token string) (*AccessClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}

	claims := &AccessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: expired", ErrAccessTokenInvalid)
		}
		return nil, ErrAccessTokenInvalid
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrAccessTokenInvalid
	}
	return claims, nil
}

// newRefreshToken returns a random hex refresh token.
func newRefreshToken() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
