package auth

import (
	"context"
	"crypto/subtle"
	"strings"

	"medinv/m/domain"
)

// StaticAuthenticator checks credentials against a fixed in-memory list.
type StaticAuthenticator struct {
	users map[string]staticUser
}

type staticUser struct {
	user     domain.User
	password string
}

// DemoUsers are the accounts printed on the login page of the demo build.
var DemoUsers = []domain.User{
	{ID: "static-garcia", Username: "garcia", Email: "garcia@hospital.mx", Name: "Dr. García", Role: domain.RoleAdmin},
	{ID: "static-martinez", Username: "martinez", Email: "martinez@hospital.mx", Name: "Dra. Martínez", Role: domain.RolePharmacist},
	{ID: "static-lopez", Username: "lopez", Email: "lopez@hospital.mx", Name: "Enf. López", Role: domain.RoleNurse},
}

// DemoPassword is shared by every demo account.
const DemoPassword = "password123"

// NewStaticAuthenticator builds the demo authenticator.
func NewStaticAuthenticator() *StaticAuthenticator {
	a := &StaticAuthenticator{users: make(map[string]staticUser, len(DemoUsers))}
	for _, u := range DemoUsers {
		a.users[u.Username] = staticUser{user: u.WithAvatar(), password: DemoPassword}
	}
	return a
}

func (a *StaticAuthenticator) Authenticate(_ context.Context, username, password string) (domain.User, error) {
	entry, ok := a.users[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return domain.User{}, ErrInvalidCredentials
	}
	if subtle.ConstantTimeCompare([]byte(entry.password), []byte(password)) != 1 {
		return domain.User{}, ErrInvalidCredentials
	}
	return entry.user, nil
}

// Lookup returns a demo user by id.
func (a *StaticAuthenticator) Lookup(id string) (domain.User, bool) {
	for _, entry := range a.users {
		if entry.user.ID == id {
			return entry.user, true
		}
	}
	return domain.User{}, false
}
