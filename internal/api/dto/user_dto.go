package dto

import "github.com/spec-kit/service-portal/internal/domain"

// RegisterRequest payload.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse returned on register/login.
type AuthResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
	User        User   `json:"user"`
}

// User response.
type User struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

// CreateOutletRequest payload.
type CreateOutletRequest struct {
	Name     string   `json:"name"`
	Address  string   `json:"address"`
	Location Location `json:"location"`
}

// Outlet response.
type Outlet struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Address  string   `json:"address"`
	Location Location `json:"location"`
}

// FromUser converts a domain user.
func FromUser(u *domain.User) User {
	return User{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// FromOutlet converts a domain outlet.
func FromOutlet(o *domain.Outlet) Outlet {
	return Outlet{
		ID:       o.ID,
		Name:     o.Name,
		Address:  o.Address,
		Location: Location{Lat: o.Location.Lat, Lng: o.Location.Lng},
	}
}
