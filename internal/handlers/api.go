package handlers

import (
	"context"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/claimlens/internal/common"
	"github.com/ternarybob/claimlens/internal/interfaces"
)

// QueueSizer reports how many messages are waiting, for health checks
type QueueSizer interface {
	Size(ctx context.Context) (int, error)
}

type APIHandler struct {
	storageManager interfaces.StorageManager
	queue          QueueSizer
	llmConfigured  bool
	logger         arbor.ILogger
}

func NewAPIHandler(storageManager interfaces.StorageManager, queue QueueSizer, llmConfigured bool) *APIHandler {
	return &APIHandler{
		storageManager: storageManager,
		queue:          queue,
		llmConfigured:  llmConfigured,
		logger:         common.GetLogger(),
	}
}

// VersionHandler returns version information
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"version":    common.GetVersion(),
		"build":      common.GetBuild(),
		"git_commit": common.GetGitCommit(),
	})
}

// HealthHandler returns liveness plus per-component state. Storage and
// queue failures degrade the overall status; a missing LLM key is
// reported but does not, since submissions still queue.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	status := "ok"
	components := map[string]interface{}{}

	if h.storageManager == nil || h.storageManager.DB() == nil {
		components["storage"] = "unavailable"
		status = "degraded"
	} else {
		components["storage"] = "ok"
	}

	if h.queue == nil {
		components["queue"] = "unavailable"
		status = "degraded"
	} else if pending, err := h.queue.Size(r.Context()); err != nil {
		h.logger.Warn().Err(err).Msg("Queue size check failed")
		components["queue"] = "unavailable"
		status = "degraded"
	} else {
		components["queue"] = map[string]interface{}{"state": "ok", "pending": pending}
	}

	if h.llmConfigured {
		components["llm"] = "configured"
	} else {
		components["llm"] = "not configured"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}

	WriteJSON(w, code, map[string]interface{}{
		"status":     status,
		"version":    common.GetVersion(),
		"components": components,
	})
}

// NotFoundHandler handles 404 errors with JSON response
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, map[string]interface{}{
		"error":   "Not Found",
		"path":    r.URL.Path,
		"message": "The requested endpoint does not exist",
	})
}
