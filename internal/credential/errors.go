package credential

import "errors"

// Credential errors. Callers map these to user-facing messages.
var (
	// ErrInvalidCredentials covers both an unknown email and a wrong
	// password so callers cannot tell which one failed.
	ErrInvalidCredentials = errors.New("invalid email or password")

	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidRetailers   = errors.New("retailer list must hold between 1 and 5 entries")
	ErrInvalidDateOfBirth = errors.New("invalid date of birth")

	ErrCurrentPasswordIncorrect = errors.New("current password is incorrect")
	ErrPasswordUnchanged        = errors.New("new password must differ from current password")
	ErrPasswordMismatch         = errors.New("passwords do not match")

	ErrRefreshTokenInvalid = errors.New("refresh token invalid or expired")
	ErrAccessTokenInvalid  = errors.New("access token invalid or expired")

	ErrMissingSecret = errors.New("token signing secret is required")
)
