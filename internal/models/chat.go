package models

import (
	"time"
)

// SessionStatus tracks where a chat session sits in the review lifecycle
type SessionStatus string

const (
	// SessionStatusProcessing indicates a review task is queued or running
	SessionStatusProcessing SessionStatus = "processing"
	// SessionStatusCompleted indicates the last review finished and records are written
	SessionStatusCompleted SessionStatus = "completed"
	// SessionStatusFailed indicates the last review exhausted its delivery attempts
	SessionStatusFailed SessionStatus = "failed"
)

// MessageRole identifies the author side of a chat message
type MessageRole string

const (
	MessageRoleUser  MessageRole = "user"
	MessageRoleModel MessageRole = "model"
)

// ChatSession represents one review conversation owned by a user.
// Sessions are created on the first message and never deleted.
type ChatSession struct {
	ID           string        `json:"id"`                         // chat_{uuid}
	UserID       string        `json:"user_id" badgerhold:"index"` // Owning identity (token subject)
	Title        string        `json:"title,omitempty"`            // Generated lazily via the title endpoint
	Status       SessionStatus `json:"status"`
	LastMessage  string        `json:"last_message,omitempty"` // Most recent user text, for listings
	MessageCount int           `json:"message_count"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// ChatMessage is a single turn within a session, ordered by CreatedAt
type ChatMessage struct {
	ID        string      `json:"id"` // msg_{uuid}
	SessionID string      `json:"session_id" badgerhold:"index"`
	UserID    string      `json:"user_id"`
	Role      MessageRole `json:"role"`
	Text      string      `json:"text"`
	MediaIDs  []string    `json:"media_ids,omitempty"` // References into the media store
	CreatedAt time.Time   `json:"created_at"`
}
