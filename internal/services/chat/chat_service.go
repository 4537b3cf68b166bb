package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/claimlens/internal/common"
	"github.com/ternarybob/claimlens/internal/interfaces"
	"github.com/ternarybob/claimlens/internal/models"
)

// listingPreviewLimit bounds the LastMessage preview stored on the
// session row.
const listingPreviewLimit = 200

// ChatService handles message intake and session reads. Intake persists
// the message and hands the review work to the queue; callers poll the
// status endpoint or subscribe over WebSocket for completion.
type ChatService struct {
	chatStorage   interfaces.ChatStorage
	reviewStorage interfaces.ReviewStorage
	mediaStorage  interfaces.MediaStorage
	mediaService  interfaces.MediaService
	queueManager  interfaces.QueueManager
	eventService  interfaces.EventService
	logger        arbor.ILogger
}

// NewChatService creates a new chat service
func NewChatService(
	chatStorage interfaces.ChatStorage,
	reviewStorage interfaces.ReviewStorage,
	mediaStorage interfaces.MediaStorage,
	mediaService interfaces.MediaService,
	queueManager interfaces.QueueManager,
	eventService interfaces.EventService,
	logger arbor.ILogger,
) *ChatService {
	return &ChatService{
		chatStorage:   chatStorage,
		reviewStorage: reviewStorage,
		mediaStorage:  mediaStorage,
		mediaService:  mediaService,
		queueManager:  queueManager,
		eventService:  eventService,
		logger:        logger,
	}
}

// Intake validates and persists an inbound message, creates the session
// when needed, and enqueues exactly one review task. The session is left
// in StatusProcessing.
func (s *ChatService) Intake(ctx context.Context, identity *interfaces.Identity, req *interfaces.IntakeRequest) (*interfaces.IntakeResult, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}

	session, err := s.resolveSession(ctx, identity, req.ChatID)
	if err != nil {
		return nil, err
	}

	message := &models.ChatMessage{
		ID:        common.NewMessageID(),
		SessionID: session.ID,
		UserID:    identity.UserID,
		Role:      models.MessageRoleUser,
		Text:      text,
		MediaIDs:  req.MediaIDs,
		CreatedAt: time.Now(),
	}
	if err := s.chatStorage.SaveMessage(ctx, message); err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	if len(req.MediaIDs) > 0 {
		if _, err := s.mediaService.Attach(ctx, identity, session.ID, message.ID, req.MediaIDs); err != nil {
			return nil, fmt.Errorf("failed to attach media: %w", err)
		}
	}

	session.Status = models.SessionStatusProcessing
	session.LastMessage = truncateForListing(text)
	session.MessageCount++
	if err := s.chatStorage.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	task := &models.ReviewTask{
		SessionID:  session.ID,
		UserID:     identity.UserID,
		MessageID:  message.ID,
		Text:       text,
		MediaIDs:   req.MediaIDs,
		EnqueuedAt: time.Now(),
	}
	msg, err := models.NewReviewMessage(common.NewTaskID(), task)
	if err != nil {
		return nil, fmt.Errorf("failed to build review task: %w", err)
	}

	if err := s.queueManager.Enqueue(ctx, msg); err != nil {
		session.Status = models.SessionStatusFailed
		if saveErr := s.chatStorage.SaveSession(ctx, session); saveErr != nil {
			s.logger.Error().Err(saveErr).Str("chat_id", session.ID).Msg("Failed to mark session failed after enqueue error")
		}
		return nil, fmt.Errorf("failed to enqueue review task: %w", err)
	}

	s.publishStatus(ctx, session)

	s.logger.Info().
		Str("chat_id", session.ID).
		Str("message_id", message.ID).
		Str("task_id", msg.TaskID).
		Int("media_count", len(req.MediaIDs)).
		Msg("Accepted chat message for review")

	return &interfaces.IntakeResult{Session: session, Message: message}, nil
}

// GetSession returns the full session detail: session row, ordered
// messages, review records, and media metadata.
func (s *ChatService) GetSession(ctx context.Context, identity *interfaces.Identity, sessionID string) (*interfaces.SessionDetail, error) {
	session, err := s.ownedSession(ctx, identity, sessionID)
	if err != nil {
		return nil, err
	}

	messages, err := s.chatStorage.ListMessagesBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	claims, err := s.reviewStorage.ListClaimsBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}

	imprecise, err := s.reviewStorage.ListImpreciseBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list imprecise language: %w", err)
	}

	media, err := s.mediaStorage.ListAssetsBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list media: %w", err)
	}

	return &interfaces.SessionDetail{
		Session:   session,
		Messages:  messages,
		Claims:    claims,
		Imprecise: imprecise,
		Media:     media,
	}, nil
}

// GetStatus returns just the session row for cheap polling
func (s *ChatService) GetStatus(ctx context.Context, identity *interfaces.Identity, sessionID string) (*models.ChatSession, error) {
	return s.ownedSession(ctx, identity, sessionID)
}

// ListSessions returns the caller's sessions, most recently updated first
func (s *ChatService) ListSessions(ctx context.Context, identity *interfaces.Identity, limit int) ([]*models.ChatSession, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	sessions, err := s.chatStorage.ListSessionsByUser(ctx, identity.UserID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// resolveSession loads an existing session or starts a new one. Unknown
// IDs are adopted as new sessions so media can be uploaded against a
// chat before its first message arrives.
func (s *ChatService) resolveSession(ctx context.Context, identity *interfaces.Identity, chatID string) (*models.ChatSession, error) {
	if chatID == "" {
		return &models.ChatSession{
			ID:     common.NewSessionID(),
			UserID: identity.UserID,
			Status: models.SessionStatusProcessing,
		}, nil
	}

	session, err := s.chatStorage.GetSession(ctx, chatID)
	if errors.Is(err, interfaces.ErrNotFound) {
		return &models.ChatSession{
			ID:     chatID,
			UserID: identity.UserID,
			Status: models.SessionStatusProcessing,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session.UserID != identity.UserID {
		return nil, fmt.Errorf("%w: chat belongs to another user", interfaces.ErrForbidden)
	}

	return session, nil
}

func (s *ChatService) ownedSession(ctx context.Context, identity *interfaces.Identity, sessionID string) (*models.ChatSession, error) {
	session, err := s.chatStorage.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != identity.UserID {
		return nil, fmt.Errorf("%w: chat belongs to another user", interfaces.ErrForbidden)
	}
	return session, nil
}

// publishStatus notifies subscribers of a session status change.
func (s *ChatService) publishStatus(ctx context.Context, session *models.ChatSession) {
	if s.eventService == nil {
		return
	}

	event := interfaces.Event{
		Type: interfaces.EventSessionStatus,
		Payload: map[string]interface{}{
			"session_id": session.ID,
			"user_id":    session.UserID,
			"status":     string(session.Status),
			"timestamp":  time.Now().Format(time.RFC3339),
		},
	}
	if err := s.eventService.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("chat_id", session.ID).Msg("Failed to publish session status event")
	}
}

func truncateForListing(text string) string {
	runes := []rune(text)
	if len(runes) <= listingPreviewLimit {
		return text
	}
	return string(runes[:listingPreviewLimit]) + "..."
}
