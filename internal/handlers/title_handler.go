package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/claimlens/internal/interfaces"
)

// TitleHandler handles GET|POST /chat/title requests
type TitleHandler struct {
	titleService interfaces.TitleService
	logger       arbor.ILogger
}

// NewTitleHandler creates a new title handler
func NewTitleHandler(
	titleService interfaces.TitleService,
	logger arbor.ILogger,
) *TitleHandler {
	return &TitleHandler{
		titleService: titleService,
		logger:       logger,
	}
}

// titleRequest is the POST /chat/title wire format. ChatID titles the
// session from its first user message and persists the result; Text
// titles the given content without touching storage.
type titleRequest struct {
	ChatID string `json:"chat_id,omitempty"`
	Text   string `json:"text,omitempty"`
}

// TitleHandler handles title generation requests
func (h *TitleHandler) TitleHandler(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFrom(r.Context())
	if identity == nil {
		WriteError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req titleRequest
	switch r.Method {
	case http.MethodGet:
		req.ChatID = r.URL.Query().Get("chat_id")
	case http.MethodPost:
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.logger.Error().Err(err).Msg("Failed to decode title request")
			WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if req.ChatID == "" && strings.TrimSpace(req.Text) == "" {
		WriteError(w, http.StatusBadRequest, "Either chat_id or text is required")
		return
	}

	var (
		title string
		err   error
	)
	if req.ChatID != "" {
		title, err = h.titleService.GenerateTitle(r.Context(), identity, req.ChatID)
	} else {
		title, err = h.titleService.GenerateTitleForText(r.Context(), req.Text)
	}
	if err != nil {
		h.logger.Error().Err(err).Str("chat_id", req.ChatID).Msg("Title generation failed")
		WriteError(w, upstreamStatus(err), err.Error())
		return
	}

	response := map[string]interface{}{
		"success": true,
		"title":   title,
	}
	if req.ChatID != "" {
		response["chat_id"] = req.ChatID
	}
	WriteJSON(w, http.StatusOK, response)
}

// upstreamStatus maps errors on provider-backed surfaces: ownership and
// lookup failures keep their codes, everything else surfaces as a bad
// gateway since the failure belongs to a dependency
func upstreamStatus(err error) int {
	if status := StatusForError(err); status != http.StatusInternalServerError {
		return status
	}
	return http.StatusBadGateway
}
