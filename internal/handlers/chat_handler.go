package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/claimlens/internal/interfaces"
)

// ChatHandler handles chat session HTTP requests
type ChatHandler struct {
	chatService interfaces.ChatService
	logger      arbor.ILogger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(
	chatService interfaces.ChatService,
	logger arbor.ILogger,
) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		logger:      logger,
	}
}

// submitRequest is the POST /chat wire format
type submitRequest struct {
	Message  string   `json:"message"`
	ChatID   string   `json:"chat_id,omitempty"`
	MediaIDs []string `json:"media_ids,omitempty"`
}

// SubmitHandler handles POST /chat. It accepts the message, enqueues one
// review task and returns 202 before any processing happens.
func (h *ChatHandler) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	identity := IdentityFrom(r.Context())
	if identity == nil {
		WriteError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error().Err(err).Msg("Failed to decode chat submission")
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		WriteError(w, http.StatusBadRequest, "Message field is required")
		return
	}

	h.logger.Info().
		Int("message_length", len(req.Message)).
		Str("chat_id", req.ChatID).
		Int("media_count", len(req.MediaIDs)).
		Msg("Processing chat submission")

	result, err := h.chatService.Intake(r.Context(), identity, &interfaces.IntakeRequest{
		ChatID:   req.ChatID,
		Text:     req.Message,
		MediaIDs: req.MediaIDs,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to accept chat submission")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"success":    true,
		"status":     string(result.Session.Status),
		"chat_id":    result.Session.ID,
		"message_id": result.Message.ID,
	})
}

// SessionHandler handles GET /chat/{id}, the full session read
func (h *ChatHandler) SessionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	identity := IdentityFrom(r.Context())
	if identity == nil {
		WriteError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	sessionID := pathPart(r, 1)
	if sessionID == "" {
		WriteError(w, http.StatusBadRequest, "Chat ID is required")
		return
	}

	detail, err := h.chatService.GetSession(r.Context(), identity, sessionID)
	if err != nil {
		h.logger.Warn().Err(err).Str("chat_id", sessionID).Msg("Failed to load session")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":            true,
		"session":            detail.Session,
		"messages":           detail.Messages,
		"claims":             detail.Claims,
		"imprecise_language": detail.Imprecise,
		"media":              detail.Media,
	})
}

// StatusHandler handles GET /chat/{id}/status, the lightweight poll
func (h *ChatHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	identity := IdentityFrom(r.Context())
	if identity == nil {
		WriteError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	sessionID := pathPart(r, 1)
	if sessionID == "" {
		WriteError(w, http.StatusBadRequest, "Chat ID is required")
		return
	}

	session, err := h.chatService.GetStatus(r.Context(), identity, sessionID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"chat_id":    session.ID,
		"status":     string(session.Status),
		"updated_at": session.UpdatedAt,
	})
}

// ListHandler handles GET /chat, the caller's sessions newest first
func (h *ChatHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	identity := IdentityFrom(r.Context())
	if identity == nil {
		WriteError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	limit := QueryLimit(r, "limit", 50)
	sessions, err := h.chatService.ListSessions(r.Context(), identity, limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list sessions")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// pathPart extracts a positional path segment: for /chat/{id}/status,
// index 1 is the session id
func pathPart(r *http.Request, index int) string {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if index >= len(parts) {
		return ""
	}
	return parts[index]
}
