package service

import (
	"context"
	"net/mail"
	"strings"

	"github.com/jmoiron/sqlx"

	"medinv/m/domain"
	"medinv/m/internal/auth"
	"medinv/m/internal/repository"
)

type UserInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type UserService struct {
	DB *sqlx.DB
}

func NewUserService(db *sqlx.DB) *UserService {
	return &UserService{DB: db}
}

func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	return repository.NewUserRepository(s.DB).List(ctx)
}

func (s *UserService) Get(ctx context.Context, id string) (domain.User, error) {
	return repository.NewUserRepository(s.DB).GetByID(ctx, id)
}

// Create validates in and stores a new account with a bcrypt hash.
func (s *UserService) Create(ctx context.Context, in UserInput) (domain.User, error) {
	username := strings.TrimSpace(in.Username)
	if len(username) < 3 {
		return domain.User{}, invalid("username", "must be at least 3 characters")
	}
	if strings.Contains(username, "@") {
		return domain.User{}, invalid("username", "must not contain @")
	}
	email := strings.TrimSpace(in.Email)
	// Display-name forms like "Bob <bob@x.com>" parse but are not plain addresses.
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return domain.User{}, invalid("email", "must be a valid address")
	}
	if len(in.Password) < auth.MinPasswordLength {
		return domain.User{}, invalid("password", "must be at least %d characters", auth.MinPasswordLength)
	}
	role, ok := domain.ParseRole(in.Role)
	if !ok {
		return domain.User{}, invalid("role", "unknown role %q", in.Role)
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, err
	}
	return repository.NewUserRepository(s.DB).Create(ctx, domain.User{
		Username: username,
		Email:    email,
		Name:     strings.TrimSpace(in.Name),
		Password: hash,
		Role:     role,
	})
}
