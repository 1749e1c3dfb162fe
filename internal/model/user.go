// Package model defines domain entities for the application.
package model

import "time"

// Retailer membership bounds for a user.
const (
	MinRetailers = 1
	MaxRetailers = 5
)

// User is a registered shopper.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never serialize
	Name         string    `json:"name"`
	DateOfBirth  time.Time `json:"date_of_birth"`
	Retailers    []string  `json:"retailers"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Profile is the view of a user handed to the rendering layer.
type Profile struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	DateOfBirth string   `json:"date_of_birth"`
	Retailers   []string `json:"retailers"`
}

// ToProfile strips credentials from a user.
func (u *User) ToProfile() Profile {
	return Profile{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		DateOfBirth: u.DateOfBirth.Format(time.DateOnly),
		Retailers:   u.Retailers,
	}
}
