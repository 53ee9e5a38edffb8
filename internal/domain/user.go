package domain

import "time"

// User is an account that owns cards and payments. Internal users are
// provisioned on the fly for checkout buyers.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Internal     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
