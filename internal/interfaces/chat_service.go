package interfaces

import (
	"context"

	"github.com/ternarybob/claimlens/internal/models"
)

// IntakeRequest is an inbound chat message submission
type IntakeRequest struct {
	// ChatID continues an existing session when set, otherwise a new
	// session is created
	ChatID string `json:"chat_id,omitempty"`

	// Text is the user's draft content to review
	Text string `json:"text"`

	// MediaIDs references previously uploaded media assets (optional)
	MediaIDs []string `json:"media_ids,omitempty"`
}

// IntakeResult reports the accepted submission
type IntakeResult struct {
	Session *models.ChatSession
	Message *models.ChatMessage
}

// SessionDetail is a full session read: the session row plus everything
// recorded against it
type SessionDetail struct {
	Session   *models.ChatSession               `json:"session"`
	Messages  []*models.ChatMessage             `json:"messages"`
	Claims    []*models.ClaimRecord             `json:"claims"`
	Imprecise []*models.ImpreciseLanguageRecord `json:"imprecise_language"`
	Media     []*models.MediaAsset              `json:"media,omitempty"`
}

// ChatService manages chat sessions and message intake
type ChatService interface {
	// Intake validates and persists an inbound message, creates the session
	// when ChatID is empty, and enqueues exactly one review task for it.
	// The session is left in StatusProcessing.
	Intake(ctx context.Context, identity *Identity, req *IntakeRequest) (*IntakeResult, error)

	// GetSession returns the full session detail. Returns ErrNotFound when
	// the session does not exist, ErrForbidden when it belongs to another user.
	GetSession(ctx context.Context, identity *Identity, sessionID string) (*SessionDetail, error)

	// GetStatus returns just the session row for cheap status polling
	GetStatus(ctx context.Context, identity *Identity, sessionID string) (*models.ChatSession, error)

	// ListSessions returns the caller's sessions, most recently updated first
	ListSessions(ctx context.Context, identity *Identity, limit int) ([]*models.ChatSession, error)
}
