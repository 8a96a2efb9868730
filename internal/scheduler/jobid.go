package scheduler

import (
	"fmt"

	"github.com/google/uuid"
)

// Job ids are deterministic so that every job belonging to a
// notification can be found and cancelled by prefix.

// JobPrefix returns the id prefix shared by all jobs of a notification.
func JobPrefix(notificationID uuid.UUID) string {
	return fmt.Sprintf("notification_%s_", notificationID)
}

// OneTimeJobID names the single deferred-send job of a notification.
func OneTimeJobID(notificationID uuid.UUID) string {
	return JobPrefix(notificationID) + "one_time"
}

// DayJobID names the weekly-recurring job for one weekday index.
func DayJobID(notificationID uuid.UUID, day int) string {
	return fmt.Sprintf("%sday_%d", JobPrefix(notificationID), day)
}

// RetryJobID names the one-time job that re-fires a failed attempt.
func RetryJobID(notificationID uuid.UUID, attempt int) string {
	return fmt.Sprintf("%sretry_%d", JobPrefix(notificationID), attempt)
}
