package model

import (
	"time"

	"github.com/google/uuid"
)

// Schedule is a recurrence rule bound to exactly one notification.
//
// When Repeat is true the schedule fires weekly on each entry of
// DaysOfWeek at TimeOfDay, bounded by [StartDate, EndDate]. An empty
// DaysOfWeek means every day. When Repeat is false the schedule produces
// at most one firing (the notification's own schedule_at).
type Schedule struct {
	ID             uuid.UUID  `json:"id"`
	NotificationID uuid.UUID  `json:"notification_id"`
	Frequency      string     `json:"frequency"`    // recurrence label, informational
	DaysOfWeek     []int      `json:"days_of_week"` // weekday indices 0-6, Sunday = 0
	TimeOfDay      string     `json:"time_of_day"`  // "HH:MM"
	StartDate      *time.Time `json:"start_date"`
	EndDate        *time.Time `json:"end_date"`
	Repeat         bool       `json:"repeat"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
