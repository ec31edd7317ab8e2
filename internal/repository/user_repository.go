package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"medinv/m/domain"
)

const userColumns = `id, username, email, name, password, role, created_at`

type UserRepository struct {
	DB sqlx.ExtContext
}

func NewUserRepository(db sqlx.ExtContext) UserRepository {
	return UserRepository{DB: db}
}

// Create stores u. Username and email are lower-cased; Password must already be hashed.
func (r UserRepository) Create(ctx context.Context, u domain.User) (domain.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt == "" {
		u.CreatedAt = domain.Timestamp(time.Now())
	}
	u.Username = strings.ToLower(strings.TrimSpace(u.Username))
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	_, err := r.DB.ExecContext(ctx, r.DB.Rebind(`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		u.ID, u.Username, u.Email, u.Name, u.Password, string(u.Role), u.CreatedAt)
	if IsDuplicate(err) {
		return u, ErrDuplicate
	}
	return u.WithAvatar(), err
}

func (r UserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	return r.getOne(ctx, `id = ?`, id)
}

func (r UserRepository) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	return r.getOne(ctx, `username = ?`, strings.ToLower(strings.TrimSpace(username)))
}

func (r UserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getOne(ctx, `email = ?`, strings.ToLower(strings.TrimSpace(email)))
}

// FirstByRole returns the oldest user holding role.
func (r UserRepository) FirstByRole(ctx context.Context, role domain.Role) (domain.User, error) {
	var u domain.User
	err := sqlx.GetContext(ctx, r.DB, &u, r.DB.Rebind(`SELECT `+userColumns+` FROM users WHERE role = ? ORDER BY created_at ASC, id ASC LIMIT 1`), string(role))
	if err != nil {
		return u, notFound(err)
	}
	return u.WithAvatar(), nil
}

func (r UserRepository) List(ctx context.Context) ([]domain.User, error) {
	users := []domain.User{}
	if err := sqlx.SelectContext(ctx, r.DB, &users, `SELECT `+userColumns+` FROM users ORDER BY username ASC`); err != nil {
		return nil, err
	}
	for i := range users {
		users[i] = users[i].WithAvatar()
	}
	return users, nil
}

func (r UserRepository) UpdatePassword(ctx context.Context, id, hash string) error {
	res, err := r.DB.ExecContext(ctx, r.DB.Rebind(`UPDATE users SET password = ? WHERE id = ?`), hash, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r UserRepository) getOne(ctx context.Context, cond string, arg any) (domain.User, error) {
	var u domain.User
	err := sqlx.GetContext(ctx, r.DB, &u, r.DB.Rebind(`SELECT `+userColumns+` FROM users WHERE `+cond), arg)
	if err != nil {
		return u, notFound(err)
	}
	return u.WithAvatar(), nil
}
