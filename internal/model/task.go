package model

import "time"

// Frequency values accepted for a task's recurrence.
const (
	FrequencyOnce    = "once"
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

// ValidFrequency reports whether f is one of the accepted recurrence values.
func ValidFrequency(f string) bool {
	switch f {
	case FrequencyOnce, FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

type Task struct {
	ID          int64      `json:"id"`
	HouseholdID int64      `json:"householdId"`
	Description string     `json:"description"`
	AssignedTo  string     `json:"assignedTo"`
	DueDate     *time.Time `json:"dueDate"`
	IsCompleted bool       `json:"isCompleted"`
	Frequency   string     `json:"frequency"`
	CompletedAt *time.Time `json:"completedAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}
