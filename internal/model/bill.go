package model

import "time"

type Bill struct {
	ID          int64     `json:"id"`
	HouseholdID int64     `json:"householdId"`
	Description string    `json:"description"`
	AmountCents int64     `json:"amountCents"`
	PaidBy      int64     `json:"paidBy"`
	CreatedAt   time.Time `json:"createdAt"`
}
