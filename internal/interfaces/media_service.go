package interfaces

import (
	"context"
	"io"

	"github.com/ternarybob/claimlens/internal/models"
)

// MediaUpload describes an inbound file upload
type MediaUpload struct {
	ChatID      string
	FileName    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// MediaService stores uploaded media on the filesystem and records asset
// metadata. PDF uploads get their text extracted at store time so review
// processing never touches the binary.
type MediaService interface {
	// Store persists the upload and returns the recorded asset.
	// Rejects uploads over the configured size limit and content types
	// that are neither PDF nor image.
	Store(ctx context.Context, identity *Identity, upload *MediaUpload) (*models.MediaAsset, error)

	// Open returns the asset metadata and a reader over its bytes.
	// Returns ErrNotFound for unknown IDs, ErrForbidden for assets owned
	// by another user.
	Open(ctx context.Context, identity *Identity, assetID string) (*models.MediaAsset, io.ReadCloser, error)

	// Attach marks assets as belonging to a message once the message is
	// accepted, keeping them out of the orphan sweep
	Attach(ctx context.Context, identity *Identity, sessionID string, messageID string, assetIDs []string) ([]*models.MediaAsset, error)

	// Remove deletes the asset metadata and its file
	Remove(ctx context.Context, assetID string) error
}
