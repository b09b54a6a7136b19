package models

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the registration record backing a CareCoins account.
type User struct {
	ID             string    `json:"id" example:"7b1c9a0e-3f7d-4a43-9a1f-1f3a1c2b9e10"` // Account ID
	Email          string    `json:"email" example:"patient@example.com"`                 // User email
	FirstName      string    `json:"first_name" example:"Jane"`                           // User first name
	LastName       string    `json:"last_name" example:"Doe"`                             // User last name
	Role           string    `json:"role" example:"user"`
	Balance        int64     `json:"care_coins_balance" example:"100"`
	LifetimeEarned int64     `json:"lifetime_earned" example:"100"`
	CreatedAt      time.Time `json:"created_at"`
}
