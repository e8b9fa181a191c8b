package domain

import (
	"errors"
	"time"
)

// User is the core user entity.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Role is a dashboard role. Roles do not nest; checks use explicit membership.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleViewer:
		return true
	}
	return false
}

// ParseRole returns the role for s, or an error when s is not a known role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", errors.New("role must be admin, editor or viewer")
	}
	return r, nil
}

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// IsEditor reports whether the user may edit: admin or editor.
func (u *User) IsEditor() bool { return u.Role == RoleAdmin || u.Role == RoleEditor }

// IsViewer reports whether the user has any role.
func (u *User) IsViewer() bool { return u.Role.Valid() }

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Username == "" {
		return errors.New("username is required")
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if u.Role == "" {
		u.Role = RoleViewer
	}
	if !u.Role.Valid() {
		return errors.New("role must be admin, editor or viewer")
	}
	return nil
}
