package model

import "time"

// TokenPair is the access/refresh credential pair issued on sign-in.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// AccessExpired reports whether the access token is no longer usable at now.
func (p TokenPair) AccessExpired(now time.Time) bool {
	return !now.Before(p.AccessExpiresAt)
}

// RefreshExpired reports whether the refresh token is no longer usable at now.
func (p TokenPair) RefreshExpired(now time.Time) bool {
	return !now.Before(p.RefreshExpiresAt)
}

// Session pairs a user with the token pair issued to them.
// Both tokens travel together: a session holds either both or neither.
type Session struct {
	User   *User     `json:"user"`
	Tokens TokenPair `json:"tokens"`
}

// RefreshToken is the server-side record of an issued refresh token.
// Only a hash of the token is stored.
type RefreshToken struct {
	TokenHash string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired returns true if the token is past its expiry at now.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
