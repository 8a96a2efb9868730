package model

import (
	"time"

	"github.com/google/uuid"
)

// Status is the delivery state of a notification.
//
// Transitions are pending -> in_flight -> sent|failed, or in_flight back
// to pending when a transient failure leaves retry budget. Sent and
// failed are terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusInFlight Status = "in_flight"
	StatusSent     Status = "sent"
	StatusFailed   Status = "failed"
)

// Terminal reports whether no further delivery attempts may follow.
func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusFailed
}

// Notification represents one unit of communication to a user.
type Notification struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	ChannelID    uuid.UUID  `json:"channel_id"`
	TypeID       uuid.UUID  `json:"type_id"`
	Title        string     `json:"title"`
	Message      string     `json:"message"`
	Status       Status     `json:"status"`
	Retries      int        `json:"retries"`       // attempts already failed transiently
	ErrorMessage string     `json:"error_message"` // last error, persisted on terminal failure
	ScheduleAt   *time.Time `json:"schedule_at"`   // one-time deferred send when set and in the future
	SentAt       *time.Time `json:"sent_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}
