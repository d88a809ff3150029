package domain

import "github.com/google/uuid"

// CursorPosition is the live pointer of a connected user. It is never
// persisted; each update overwrites the previous one for the same user.
type CursorPosition struct {
	UserID    uuid.UUID `json:"user_id"`
	UserName  string    `json:"user_name"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Color     string    `json:"color"`
	Animation string    `json:"animation,omitempty"`
}
