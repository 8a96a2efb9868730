package model

import (
	"time"

	"github.com/google/uuid"
)

// Channel is a delivery medium, referenced by notifications and templates.
type Channel struct {
	ID          uuid.UUID `json:"id"`
	Code        string    `json:"code"` // "sms", "email", "whatsapp", "push"
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Template is a per-channel message body with {placeholder} fields.
// The first active template for a channel, in creation order, is used.
type Template struct {
	ID        uuid.UUID `json:"id"`
	ChannelID uuid.UUID `json:"channel_id"`
	Name      string    `json:"name"`
	Subject   string    `json:"subject"` // used by the email sender
	Body      string    `json:"body"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
