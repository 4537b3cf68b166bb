package models

import (
	"time"
)

// MediaAsset is the metadata record for an uploaded binary. The bytes
// themselves live in the filesystem media store under StorageKey.
type MediaAsset struct {
	ID            string    `json:"id"` // media_{uuid}
	SessionID     string    `json:"session_id" badgerhold:"index"`
	MessageID     string    `json:"message_id,omitempty"`
	UserID        string    `json:"user_id"`
	FileName      string    `json:"file_name"`
	ContentType   string    `json:"content_type"`
	Size          int64     `json:"size"`
	StorageKey    string    `json:"storage_key"`              // users/{uid}/chats/{sid}/media/{asset_id}_{file_name}
	ExtractedText string    `json:"extracted_text,omitempty"` // Text pulled from PDFs for model input
	CreatedAt     time.Time `json:"created_at"`
}

// IsPDF reports whether the asset should go through text extraction
func (m *MediaAsset) IsPDF() bool {
	return m.ContentType == "application/pdf"
}

// IsImage reports whether the asset can be inlined as a model image part
func (m *MediaAsset) IsImage() bool {
	switch m.ContentType {
	case "image/png", "image/jpeg", "image/webp", "image/gif":
		return true
	}
	return false
}
