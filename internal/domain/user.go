package domain

import "time"

// Role separates account holders from the support team.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// User is an account holder or an admin.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin reports whether the user belongs to the support team.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
