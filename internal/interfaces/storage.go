// -----------------------------------------------------------------------
// Last Modified: Tuesday, 14th April 2026 09:40:02 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/claimlens/internal/models"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// ChatStorage - interface for chat session and message persistence
type ChatStorage interface {
	// Session operations
	SaveSession(ctx context.Context, session *models.ChatSession) error
	GetSession(ctx context.Context, id string) (*models.ChatSession, error)
	ListSessionsByUser(ctx context.Context, userID string, limit int) ([]*models.ChatSession, error)
	CountSessions(ctx context.Context) (int, error)

	// Message operations
	SaveMessage(ctx context.Context, message *models.ChatMessage) error
	GetMessage(ctx context.Context, id string) (*models.ChatMessage, error)
	ListMessagesBySession(ctx context.Context, sessionID string) ([]*models.ChatMessage, error)
	CountMessagesBySession(ctx context.Context, sessionID string) (int, error)
}

// ReviewStorage - interface for claim and imprecise-language record persistence
type ReviewStorage interface {
	// Claim operations
	SaveClaims(ctx context.Context, claims []*models.ClaimRecord) error
	ListClaimsBySession(ctx context.Context, sessionID string) ([]*models.ClaimRecord, error)
	CountClaimsBySession(ctx context.Context, sessionID string) (int, error)

	// Imprecise-language operations
	SaveImprecise(ctx context.Context, records []*models.ImpreciseLanguageRecord) error
	ListImpreciseBySession(ctx context.Context, sessionID string) ([]*models.ImpreciseLanguageRecord, error)
}

// MediaStorage - interface for media asset metadata persistence.
// Binary payloads live on the filesystem behind MediaService, only
// metadata goes through here.
type MediaStorage interface {
	SaveAsset(ctx context.Context, asset *models.MediaAsset) error
	GetAsset(ctx context.Context, id string) (*models.MediaAsset, error)
	ListAssetsBySession(ctx context.Context, sessionID string) ([]*models.MediaAsset, error)
	ListUnattachedBefore(ctx context.Context, cutoff time.Time) ([]*models.MediaAsset, error)
	DeleteAsset(ctx context.Context, id string) error
}

// StorageManager - composite interface for all storage operations
type StorageManager interface {
	ChatStorage() ChatStorage
	ReviewStorage() ReviewStorage
	MediaStorage() MediaStorage
	KeyValueStorage() KeyValueStorage

	// LoadVariablesFromFiles seeds the KV store from variable TOML files
	LoadVariablesFromFiles(ctx context.Context, dirPath string) error

	DB() interface{}
	Close() error
}
