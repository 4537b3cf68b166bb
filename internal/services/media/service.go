package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/claimlens/internal/common"
	"github.com/ternarybob/claimlens/internal/interfaces"
	"github.com/ternarybob/claimlens/internal/models"
)

// Service stores uploaded media binaries on the filesystem and records
// their metadata. PDF uploads get their text extracted at store time so
// review processing never has to touch the binary.
type Service struct {
	config       *common.MediaConfig
	mediaStorage interfaces.MediaStorage
	chatStorage  interfaces.ChatStorage
	extractor    interfaces.PDFExtractor
	logger       arbor.ILogger
}

// NewService creates a new media service
func NewService(cfg *common.MediaConfig, mediaStorage interfaces.MediaStorage, chatStorage interfaces.ChatStorage, extractor interfaces.PDFExtractor, logger arbor.ILogger) (*Service, error) {
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}

	return &Service{
		config:       cfg,
		mediaStorage: mediaStorage,
		chatStorage:  chatStorage,
		extractor:    extractor,
		logger:       logger,
	}, nil
}

// Store persists an upload under the caller's chat and records the asset.
// The chat session does not have to exist yet; when it does, it must
// belong to the caller.
func (s *Service) Store(ctx context.Context, identity *interfaces.Identity, upload *interfaces.MediaUpload) (*models.MediaAsset, error) {
	if upload.ChatID == "" {
		return nil, fmt.Errorf("chat_id is required")
	}
	if upload.Size > 0 && upload.Size > s.config.MaxUploadSize {
		return nil, fmt.Errorf("upload exceeds maximum size of %d bytes", s.config.MaxUploadSize)
	}

	asset := &models.MediaAsset{
		ID:          common.NewMediaID(),
		SessionID:   upload.ChatID,
		UserID:      identity.UserID,
		FileName:    sanitizeFileName(upload.FileName),
		ContentType: upload.ContentType,
	}
	if !asset.IsPDF() && !asset.IsImage() {
		return nil, fmt.Errorf("unsupported content type: %s", upload.ContentType)
	}

	// Uploads may arrive before the first message creates the session.
	session, err := s.chatStorage.GetSession(ctx, upload.ChatID)
	if err == nil && session.UserID != identity.UserID {
		return nil, fmt.Errorf("%w: chat belongs to another user", interfaces.ErrForbidden)
	}
	if err != nil && !errors.Is(err, interfaces.ErrNotFound) {
		return nil, fmt.Errorf("failed to check chat ownership: %w", err)
	}

	asset.StorageKey = path.Join("users", identity.UserID, "chats", upload.ChatID, "media", asset.ID+"_"+asset.FileName)

	fullPath := s.absolutePath(asset.StorageKey)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}

	written, err := s.writeFile(fullPath, upload.Reader)
	if err != nil {
		os.Remove(fullPath)
		return nil, err
	}
	asset.Size = written

	if asset.IsPDF() {
		text, err := s.extractor.ExtractText(ctx, fullPath)
		if err != nil {
			s.logger.Warn().Err(err).Str("media_id", asset.ID).Msg("PDF text extraction failed, storing without text")
		} else {
			asset.ExtractedText = text
		}
	}

	if err := s.mediaStorage.SaveAsset(ctx, asset); err != nil {
		os.Remove(fullPath)
		return nil, fmt.Errorf("failed to save media asset: %w", err)
	}

	s.logger.Info().
		Str("media_id", asset.ID).
		Str("chat_id", asset.SessionID).
		Str("content_type", asset.ContentType).
		Int64("size", asset.Size).
		Msg("Stored media asset")

	return asset, nil
}

// Open returns the asset metadata and a reader over its bytes.
func (s *Service) Open(ctx context.Context, identity *interfaces.Identity, assetID string) (*models.MediaAsset, io.ReadCloser, error) {
	asset, err := s.mediaStorage.GetAsset(ctx, assetID)
	if err != nil {
		return nil, nil, err
	}
	if asset.UserID != identity.UserID {
		return nil, nil, fmt.Errorf("%w: media belongs to another user", interfaces.ErrForbidden)
	}

	file, err := os.Open(s.absolutePath(asset.StorageKey))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: media file missing from store", interfaces.ErrNotFound)
		}
		return nil, nil, fmt.Errorf("failed to open media file: %w", err)
	}

	return asset, file, nil
}

// Attach binds assets to an accepted message, keeping them out of the
// orphan sweep. Every asset must belong to the caller and the chat.
func (s *Service) Attach(ctx context.Context, identity *interfaces.Identity, sessionID string, messageID string, assetIDs []string) ([]*models.MediaAsset, error) {
	attached := make([]*models.MediaAsset, 0, len(assetIDs))

	for _, assetID := range assetIDs {
		asset, err := s.mediaStorage.GetAsset(ctx, assetID)
		if err != nil {
			return nil, fmt.Errorf("media %s: %w", assetID, err)
		}
		if asset.UserID != identity.UserID {
			return nil, fmt.Errorf("%w: media %s belongs to another user", interfaces.ErrForbidden, assetID)
		}
		if asset.SessionID != sessionID {
			return nil, fmt.Errorf("%w: media %s belongs to another chat", interfaces.ErrForbidden, assetID)
		}

		asset.MessageID = messageID
		if err := s.mediaStorage.SaveAsset(ctx, asset); err != nil {
			return nil, fmt.Errorf("failed to attach media %s: %w", assetID, err)
		}
		attached = append(attached, asset)
	}

	return attached, nil
}

// Remove deletes the asset record and its file. Unknown assets are not
// an error so the orphan sweep can re-run safely.
func (s *Service) Remove(ctx context.Context, assetID string) error {
	asset, err := s.mediaStorage.GetAsset(ctx, assetID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil
		}
		return err
	}

	if err := os.Remove(s.absolutePath(asset.StorageKey)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove media file: %w", err)
	}

	if err := s.mediaStorage.DeleteAsset(ctx, assetID); err != nil {
		return fmt.Errorf("failed to delete media asset: %w", err)
	}

	s.logger.Debug().Str("media_id", assetID).Msg("Removed media asset")
	return nil
}

// writeFile streams the upload to disk while enforcing the size limit.
func (s *Service) writeFile(fullPath string, reader io.Reader) (int64, error) {
	file, err := os.Create(fullPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create media file: %w", err)
	}
	defer file.Close()

	written, err := io.Copy(file, io.LimitReader(reader, s.config.MaxUploadSize+1))
	if err != nil {
		return 0, fmt.Errorf("failed to write media file: %w", err)
	}
	if written > s.config.MaxUploadSize {
		return 0, fmt.Errorf("upload exceeds maximum size of %d bytes", s.config.MaxUploadSize)
	}

	return written, nil
}

func (s *Service) absolutePath(storageKey string) string {
	return filepath.Join(s.config.Dir, filepath.FromSlash(storageKey))
}

func sanitizeFileName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "..", "")
	if name == "" || name == "." || name == "/" {
		return "upload"
	}
	return name
}
