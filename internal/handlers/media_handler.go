package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/claimlens/internal/interfaces"
)

// uploadMemoryLimit bounds how much of a multipart body is held in
// memory before spilling to temp files
const uploadMemoryLimit = 8 << 20

// MediaHandler handles media upload and download requests
type MediaHandler struct {
	mediaService interfaces.MediaService
	logger       arbor.ILogger
}

// NewMediaHandler creates a new media handler
func NewMediaHandler(
	mediaService interfaces.MediaService,
	logger arbor.ILogger,
) *MediaHandler {
	return &MediaHandler{
		mediaService: mediaService,
		logger:       logger,
	}
}

// UploadHandler handles POST /chat/media multipart uploads. Fields:
// file (the binary), chat_id, optional message_id to attach immediately.
func (h *MediaHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	identity := IdentityFrom(r.Context())
	if identity == nil {
		WriteError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	if err := r.ParseMultipartForm(uploadMemoryLimit); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid multipart request")
		return
	}

	chatID := r.FormValue("chat_id")
	if chatID == "" {
		WriteError(w, http.StatusBadRequest, "chat_id field is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	asset, err := h.mediaService.Store(r.Context(), identity, &interfaces.MediaUpload{
		ChatID:      chatID,
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Reader:      file,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("chat_id", chatID).Str("file_name", header.Filename).Msg("Failed to store media upload")
		WriteServiceError(w, err)
		return
	}

	if messageID := r.FormValue("message_id"); messageID != "" {
		if _, err := h.mediaService.Attach(r.Context(), identity, chatID, messageID, []string{asset.ID}); err != nil {
			h.logger.Warn().Err(err).Str("media_id", asset.ID).Msg("Failed to attach uploaded media")
			WriteServiceError(w, err)
			return
		}
		asset.MessageID = messageID
	}

	h.logger.Info().
		Str("media_id", asset.ID).
		Str("chat_id", chatID).
		Int("size", int(asset.Size)).
		Msg("Stored media upload")

	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"media":   asset,
	})
}

// DownloadHandler handles GET /chat/media/{id}, streaming the binary
func (h *MediaHandler) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	identity := IdentityFrom(r.Context())
	if identity == nil {
		WriteError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	assetID := pathPart(r, 2)
	if assetID == "" {
		WriteError(w, http.StatusBadRequest, "Media ID is required")
		return
	}

	asset, reader, err := h.mediaService.Open(r.Context(), identity, assetID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", asset.ContentType)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", asset.Size))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", asset.FileName))
	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Warn().Err(err).Str("media_id", assetID).Msg("Media stream interrupted")
	}
}
