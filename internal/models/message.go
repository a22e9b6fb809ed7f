package models

import "time"

// Role tags a stored conversation turn. The store accepts any role the
// conversation layer writes; the client-facing API collapses everything
// that is not RoleUser into RoleAssistant.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one turn of a conversation thread. Turns are never mutated
// after creation; a thread reset flips Active to false in bulk.
type Message struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	UserID    int64     `json:"user_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
