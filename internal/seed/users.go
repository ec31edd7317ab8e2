package seed

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"medinv/m/domain"
	"medinv/m/internal/auth"
	"medinv/m/internal/repository"
)

// TestAccount is one account created by SeedUsers.
type TestAccount struct {
	Username string
	Email    string
	Name     string
	Password string
	Role     domain.Role
}

var TestAccounts = []TestAccount{
	{Username: "admin", Email: "admin@hospital.com", Name: "Administrador Principal", Password: "Admin123!", Role: domain.RoleAdmin},
	{Username: "farmacia", Email: "farmacia@hospital.com", Name: "Jefe de Farmacia", Password: "Farmacia123!", Role: domain.RolePharmacist},
	{Username: "asistente", Email: "asistente@hospital.com", Name: "Asistente Médico", Password: "Asistente123!", Role: domain.RoleAssistant},
}

// SeedUsers creates the test accounts. Existing accounts are left untouched, so
// running it twice is harmless.
func SeedUsers(ctx context.Context, db *sqlx.DB, logger *zap.Logger) (int, error) {
	users := repository.NewUserRepository(db)
	created := 0
	for _, acc := range TestAccounts {
		hash, err := auth.HashPassword(acc.Password)
		if err != nil {
			return created, err
		}
		_, err = users.Create(ctx, domain.User{
			Username: acc.Username,
			Email:    acc.Email,
			Name:     acc.Name,
			Password: hash,
			Role:     acc.Role,
		})
		if errors.Is(err, repository.ErrDuplicate) {
			continue
		}
		if err != nil {
			return created, err
		}
		created++
	}
	logger.Info("seeded users", zap.Int("created", created))
	return created, nil
}
