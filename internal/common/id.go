package common

import (
	"github.com/google/uuid"
)

// NewSessionID generates a unique chat session ID with the "chat_" prefix
// Format: chat_<uuid>
func NewSessionID() string {
	return "chat_" + uuid.New().String()
}

// NewMessageID generates a unique message ID with the "msg_" prefix
func NewMessageID() string {
	return "msg_" + uuid.New().String()
}

// NewRecordID generates a unique review record ID with the "rec_" prefix
func NewRecordID() string {
	return "rec_" + uuid.New().String()
}

// NewMediaID generates a unique media asset ID with the "media_" prefix
func NewMediaID() string {
	return "media_" + uuid.New().String()
}

// NewTaskID generates a unique queue task ID with the "task_" prefix
func NewTaskID() string {
	return "task_" + uuid.New().String()
}
