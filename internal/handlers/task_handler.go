package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/claimlens/internal/interfaces"
	"github.com/ternarybob/claimlens/internal/models"
)

// queueTokenHeader carries the shared secret on queue-dispatched requests
const queueTokenHeader = "X-Queue-Token"

// TaskHandler handles POST /chat/task, the queue-invoked processing
// endpoint. It is guarded by the queue token, not by user bearer auth,
// and runs the review synchronously so a pushing queue can retry on 5xx.
type TaskHandler struct {
	authService   interfaces.AuthService
	reviewService interfaces.ReviewService
	logger        arbor.ILogger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(
	authService interfaces.AuthService,
	reviewService interfaces.ReviewService,
	logger arbor.ILogger,
) *TaskHandler {
	return &TaskHandler{
		authService:   authService,
		reviewService: reviewService,
		logger:        logger,
	}
}

// ProcessHandler handles POST /chat/task requests
func (h *TaskHandler) ProcessHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if err := h.authService.VerifyQueueToken(r.Header.Get(queueTokenHeader)); err != nil {
		h.logger.Warn().Str("remote", r.RemoteAddr).Msg("Task request with invalid queue token")
		WriteError(w, http.StatusForbidden, "Invalid queue token")
		return
	}

	var task models.ReviewTask
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		h.logger.Error().Err(err).Msg("Failed to decode review task")
		WriteError(w, http.StatusBadRequest, "Invalid task payload")
		return
	}
	if err := task.Validate(); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Info().
		Str("chat_id", task.SessionID).
		Str("message_id", task.MessageID).
		Msg("Processing review task")

	if err := h.reviewService.ProcessTask(r.Context(), &task); err != nil {
		h.logger.Error().Err(err).Str("chat_id", task.SessionID).Msg("Review task failed")
		WriteError(w, http.StatusBadGateway, "Review processing failed: "+err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"chat_id": task.SessionID,
	})
}
