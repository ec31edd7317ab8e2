package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type Role string

const (
	RoleAdmin      Role = "admin"
	RolePharmacist Role = "pharmacist"
	RoleNurse      Role = "nurse"
	RoleAssistant  Role = "assistant"
)

var roleLabels = map[string]Role{
	"administrador": RoleAdmin,
	"farmacéutico":  RolePharmacist,
	"farmaceutico":  RolePharmacist,
	"enfermero":     RoleNurse,
	"enfermera":     RoleNurse,
	"asistente":     RoleAssistant,
}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RolePharmacist, RoleNurse, RoleAssistant:
		return true
	}
	return false
}

// ParseRole accepts a canonical role or its Spanish label.
func ParseRole(raw string) (Role, bool) {
	r := Role(normalizeKey(raw))
	if r.Valid() {
		return r, true
	}
	if mapped, ok := roleLabels[normalizeKey(raw)]; ok {
		return mapped, true
	}
	return "", false
}

type User struct {
	ID        string `json:"id" db:"id"`
	Username  string `json:"username" db:"username"`
	Email     string `json:"email" db:"email"`
	Name      string `json:"name" db:"name"`
	Password  string `json:"-" db:"password"`
	Role      Role   `json:"role" db:"role"`
	Avatar    string `json:"avatar" db:"-"`
	CreatedAt string `json:"created_at,omitempty" db:"created_at"`
}

// AvatarInitial is the upper-cased first letter of the display name, falling
// back to the username.
func AvatarInitial(name, username string) string {
	for _, src := range []string{name, username} {
		src = strings.TrimSpace(src)
		if src == "" {
			continue
		}
		r, _ := utf8.DecodeRuneInString(src)
		return string(unicode.ToUpper(r))
	}
	return ""
}

// WithAvatar fills the derived avatar field.
func (u User) WithAvatar() User {
	u.Avatar = AvatarInitial(u.Name, u.Username)
	return u
}
