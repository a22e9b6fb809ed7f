package models

import "time"

// ScriptStatus tracks review state. A script starts PENDING and moves
// exactly once to APPROVED or REJECTED.
type ScriptStatus string

const (
	ScriptPending  ScriptStatus = "PENDING"
	ScriptApproved ScriptStatus = "APPROVED"
	ScriptRejected ScriptStatus = "REJECTED"
)

// VideoScript is the output artifact of a finalized conversation.
type VideoScript struct {
	ID        string       `json:"id"`
	UserID    int64        `json:"user_id"`
	Content   string       `json:"content"`
	Status    ScriptStatus `json:"status"`
	Reason    string       `json:"reason,omitempty"`
	VideoURL  string       `json:"video_url,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}
