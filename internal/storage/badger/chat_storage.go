package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/claimlens/internal/interfaces"
	"github.com/ternarybob/claimlens/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ChatStorage implements the ChatStorage interface for Badger
type ChatStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewChatStorage creates a new ChatStorage instance
func NewChatStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ChatStorage {
	return &ChatStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ChatStorage) SaveSession(ctx context.Context, session *models.ChatSession) error {
	if session.ID == "" {
		return fmt.Errorf("session ID is required")
	}

	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	if err := s.db.Store().Upsert(session.ID, session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *ChatStorage) GetSession(ctx context.Context, id string) (*models.ChatSession, error) {
	var session models.ChatSession
	if err := s.db.Store().Get(id, &session); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

func (s *ChatStorage) ListSessionsByUser(ctx context.Context, userID string, limit int) ([]*models.ChatSession, error) {
	query := badgerhold.Where("UserID").Eq(userID).SortBy("UpdatedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var sessions []models.ChatSession
	if err := s.db.Store().Find(&sessions, query); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	result := make([]*models.ChatSession, len(sessions))
	for i := range sessions {
		result[i] = &sessions[i]
	}
	return result, nil
}

func (s *ChatStorage) CountSessions(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.ChatSession{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return int(count), nil
}

func (s *ChatStorage) SaveMessage(ctx context.Context, message *models.ChatMessage) error {
	if message.ID == "" {
		return fmt.Errorf("message ID is required")
	}
	if message.SessionID == "" {
		return fmt.Errorf("message session ID is required")
	}

	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}

	if err := s.db.Store().Upsert(message.ID, message); err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

func (s *ChatStorage) GetMessage(ctx context.Context, id string) (*models.ChatMessage, error) {
	var message models.ChatMessage
	if err := s.db.Store().Get(id, &message); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return &message, nil
}

// ListMessagesBySession returns messages in chronological order
func (s *ChatStorage) ListMessagesBySession(ctx context.Context, sessionID string) ([]*models.ChatMessage, error) {
	var messages []models.ChatMessage
	query := badgerhold.Where("SessionID").Eq(sessionID).SortBy("CreatedAt")
	if err := s.db.Store().Find(&messages, query); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	result := make([]*models.ChatMessage, len(messages))
	for i := range messages {
		result[i] = &messages[i]
	}
	return result, nil
}

func (s *ChatStorage) CountMessagesBySession(ctx context.Context, sessionID string) (int, error) {
	count, err := s.db.Store().Count(&models.ChatMessage{}, badgerhold.Where("SessionID").Eq(sessionID))
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return int(count), nil
}
