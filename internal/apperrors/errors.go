package apperrors

import (
	"errors"
)

var (
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrRoleNotFound       = errors.New("role not found")

	// Returned on login when the user is unknown or the password is wrong.
	// Callers must not be able to tell those cases apart.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenRevoked  = errors.New("refresh token is revoked")
	ErrRefreshTokenExpired  = errors.New("refresh token is expired")

	ErrTokenInvalid = errors.New("access token is invalid")
	ErrTokenExpired = errors.New("access token is expired")

	// Missing signing key material: fatal at startup, never per request
	ErrSignerNotConfigured = errors.New("token signer is not configured")
)
