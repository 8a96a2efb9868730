package dto

import "time"

// CreateNotificationRequest is the payload for creating a notification.
// A future schedule_at defers the one-time send; a past or absent one
// triggers delivery immediately.
type CreateNotificationRequest struct {
	UserID     string     `json:"user_id" validate:"required,uuid"`
	ChannelID  string     `json:"channel_id" validate:"required,uuid"`
	TypeID     string     `json:"type_id" validate:"required,uuid"`
	Title      string     `json:"title" validate:"required"`
	Message    string     `json:"message" validate:"required"`
	ScheduleAt *time.Time `json:"schedule_at"`
}

// UpsertScheduleRequest is the payload for creating or replacing the
// recurrence of a notification. Empty days_of_week means every day;
// empty time_of_day defaults to 09:00.
type UpsertScheduleRequest struct {
	Frequency  string     `json:"frequency"`
	DaysOfWeek []int      `json:"days_of_week" validate:"omitempty,dive,min=0,max=6"`
	TimeOfDay  string     `json:"time_of_day" validate:"omitempty,len=5"`
	StartDate  *time.Time `json:"start_date"`
	EndDate    *time.Time `json:"end_date"`
	Repeat     bool       `json:"repeat"`
}
