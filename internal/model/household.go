package model

import "time"

type Household struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	RoomCode  string    `json:"roomCode"`
	CreatedBy int64     `json:"createdBy"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type HouseholdMember struct {
	ID          int64     `json:"id"`
	HouseholdID int64     `json:"household_id"`
	UserID      int64     `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
}
