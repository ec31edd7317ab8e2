package auth

import (
	"context"
	"errors"

	"medinv/m/domain"
)

var (
	// ErrInvalidCredentials is the single failure returned for any bad login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrPasswordUnsupported is returned when the authenticator cannot change passwords.
	ErrPasswordUnsupported = errors.New("password change not supported")
	ErrWeakPassword        = errors.New("password must be at least 6 characters")
)

// MinPasswordLength applies to new passwords.
const MinPasswordLength = 6

// Authenticator verifies a username and password pair.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (domain.User, error)
}

// PasswordChanger is implemented by authenticators backed by mutable storage.
type PasswordChanger interface {
	ChangePassword(ctx context.Context, userID, current, next string) error
}
