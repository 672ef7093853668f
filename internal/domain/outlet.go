package domain

import "time"

// Outlet is a physical site owned by an account holder.
type Outlet struct {
	ID        string
	UserID    string
	Name      string
	Address   string
	Location  Location
	CreatedAt time.Time
}
