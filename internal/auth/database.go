package auth

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"medinv/m/domain"
	"medinv/m/internal/repository"
)

// DatabaseAuthenticator checks credentials against the users table.
type DatabaseAuthenticator struct {
	Users repository.UserRepository
}

func NewDatabaseAuthenticator(users repository.UserRepository) *DatabaseAuthenticator {
	return &DatabaseAuthenticator{Users: users}
}

// Authenticate resolves the username to its account email, loads the account by
// email and compares the bcrypt hash. An email may be given instead of a username.
func (a *DatabaseAuthenticator) Authenticate(ctx context.Context, username, password string) (domain.User, error) {
	email := strings.TrimSpace(username)
	if !strings.Contains(email, "@") {
		u, err := a.Users.GetByUsername(ctx, username)
		if err != nil {
			return domain.User{}, lookupErr(err)
		}
		email = u.Email
	}
	u, err := a.Users.GetByEmail(ctx, email)
	if err != nil {
		return domain.User{}, lookupErr(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// ChangePassword verifies current and stores a hash of next.
func (a *DatabaseAuthenticator) ChangePassword(ctx context.Context, userID, current, next string) error {
	if len(next) < MinPasswordLength {
		return ErrWeakPassword
	}
	u, err := a.Users.GetByID(ctx, userID)
	if err != nil {
		return lookupErr(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(current)) != nil {
		return ErrInvalidCredentials
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	return a.Users.UpdatePassword(ctx, userID, hash)
}

// HashPassword bcrypts a plain password with the default cost.
func HashPassword(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func lookupErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrInvalidCredentials
	}
	return err
}
