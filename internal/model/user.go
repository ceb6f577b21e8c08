package model

import "time"

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	HouseholdID  *int64    `json:"householdId"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Affiliated reports whether the user belongs to a household.
func (u *User) Affiliated() bool {
	return u.HouseholdID != nil
}
