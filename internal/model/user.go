package model

import "github.com/google/uuid"

// User carries the contact fields the user directory exposes for
// destination resolution.
type User struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	CountryCode string    `json:"country_code"`
}
