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

// ReviewStorage implements the ReviewStorage interface for Badger
type ReviewStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewReviewStorage creates a new ReviewStorage instance
func NewReviewStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ReviewStorage {
	return &ReviewStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ReviewStorage) SaveClaims(ctx context.Context, claims []*models.ClaimRecord) error {
	for _, claim := range claims {
		if claim.ID == "" {
			return fmt.Errorf("claim ID is required")
		}
		if claim.CreatedAt.IsZero() {
			claim.CreatedAt = time.Now()
		}
		if err := s.db.Store().Upsert(claim.ID, claim); err != nil {
			return fmt.Errorf("failed to save claim %s: %w", claim.ID, err)
		}
	}
	return nil
}

// ListClaimsBySession returns claims in the order they were recorded
func (s *ReviewStorage) ListClaimsBySession(ctx context.Context, sessionID string) ([]*models.ClaimRecord, error) {
	var claims []models.ClaimRecord
	query := badgerhold.Where("SessionID").Eq(sessionID).SortBy("CreatedAt")
	if err := s.db.Store().Find(&claims, query); err != nil {
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}

	result := make([]*models.ClaimRecord, len(claims))
	for i := range claims {
		result[i] = &claims[i]
	}
	return result, nil
}

func (s *ReviewStorage) CountClaimsBySession(ctx context.Context, sessionID string) (int, error) {
	count, err := s.db.Store().Count(&models.ClaimRecord{}, badgerhold.Where("SessionID").Eq(sessionID))
	if err != nil {
		return 0, fmt.Errorf("failed to count claims: %w", err)
	}
	return int(count), nil
}

func (s *ReviewStorage) SaveImprecise(ctx context.Context, records []*models.ImpreciseLanguageRecord) error {
	for _, record := range records {
		if record.ID == "" {
			return fmt.Errorf("imprecise-language record ID is required")
		}
		if record.CreatedAt.IsZero() {
			record.CreatedAt = time.Now()
		}
		if err := s.db.Store().Upsert(record.ID, record); err != nil {
			return fmt.Errorf("failed to save imprecise-language record %s: %w", record.ID, err)
		}
	}
	return nil
}

func (s *ReviewStorage) ListImpreciseBySession(ctx context.Context, sessionID string) ([]*models.ImpreciseLanguageRecord, error) {
	var records []models.ImpreciseLanguageRecord
	query := badgerhold.Where("SessionID").Eq(sessionID).SortBy("CreatedAt")
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list imprecise-language records: %w", err)
	}

	result := make([]*models.ImpreciseLanguageRecord, len(records))
	for i := range records {
		result[i] = &records[i]
	}
	return result, nil
}
