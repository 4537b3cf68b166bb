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

// MediaStorage implements the MediaStorage interface for Badger
type MediaStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewMediaStorage creates a new MediaStorage instance
func NewMediaStorage(db *BadgerDB, logger arbor.ILogger) interfaces.MediaStorage {
	return &MediaStorage{
		db:     db,
		logger: logger,
	}
}

func (s *MediaStorage) SaveAsset(ctx context.Context, asset *models.MediaAsset) error {
	if asset.ID == "" {
		return fmt.Errorf("asset ID is required")
	}

	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = time.Now()
	}

	if err := s.db.Store().Upsert(asset.ID, asset); err != nil {
		return fmt.Errorf("failed to save media asset: %w", err)
	}
	return nil
}

func (s *MediaStorage) GetAsset(ctx context.Context, id string) (*models.MediaAsset, error) {
	var asset models.MediaAsset
	if err := s.db.Store().Get(id, &asset); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get media asset: %w", err)
	}
	return &asset, nil
}

func (s *MediaStorage) ListAssetsBySession(ctx context.Context, sessionID string) ([]*models.MediaAsset, error) {
	var assets []models.MediaAsset
	query := badgerhold.Where("SessionID").Eq(sessionID).SortBy("CreatedAt")
	if err := s.db.Store().Find(&assets, query); err != nil {
		return nil, fmt.Errorf("failed to list media assets: %w", err)
	}

	result := make([]*models.MediaAsset, len(assets))
	for i := range assets {
		result[i] = &assets[i]
	}
	return result, nil
}

// ListUnattachedBefore returns assets never attached to a message and
// older than the cutoff. Used by the orphan sweep.
func (s *MediaStorage) ListUnattachedBefore(ctx context.Context, cutoff time.Time) ([]*models.MediaAsset, error) {
	var assets []models.MediaAsset
	query := badgerhold.Where("MessageID").Eq("").And("CreatedAt").Lt(cutoff)
	if err := s.db.Store().Find(&assets, query); err != nil {
		return nil, fmt.Errorf("failed to list unattached media assets: %w", err)
	}

	result := make([]*models.MediaAsset, len(assets))
	for i := range assets {
		result[i] = &assets[i]
	}
	return result, nil
}

func (s *MediaStorage) DeleteAsset(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.MediaAsset{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete media asset: %w", err)
	}
	return nil
}
