package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/claimlens/internal/interfaces"
)

// ReportHandler handles GET /chat/{id}/report requests
type ReportHandler struct {
	reportService interfaces.ReportService
	logger        arbor.ILogger
}

// NewReportHandler creates a new report handler
func NewReportHandler(
	reportService interfaces.ReportService,
	logger arbor.ILogger,
) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
		logger:        logger,
	}
}

// ReportHandler renders the session review as HTML (default) or PDF,
// selected by the format query parameter
func (h *ReportHandler) ReportHandler(w http.ResponseWriter, r *http.Request) {
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

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "html"
	}
	if format != "html" && format != "pdf" {
		WriteError(w, http.StatusBadRequest, "format must be html or pdf")
		return
	}

	markdown, err := h.reportService.BuildMarkdown(r.Context(), identity, sessionID)
	if err != nil {
		h.logger.Warn().Err(err).Str("chat_id", sessionID).Msg("Failed to build report")
		WriteServiceError(w, err)
		return
	}
	title := reportTitle(markdown)

	switch format {
	case "pdf":
		content, err := h.reportService.RenderPDF(markdown, title)
		if err != nil {
			h.logger.Error().Err(err).Str("chat_id", sessionID).Msg("Failed to render PDF report")
			WriteError(w, http.StatusInternalServerError, "Failed to render report")
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sessionID+"-report.pdf"))
		w.Write(content)

	default:
		content, err := h.reportService.RenderHTML(markdown, title)
		if err != nil {
			h.logger.Error().Err(err).Str("chat_id", sessionID).Msg("Failed to render HTML report")
			WriteError(w, http.StatusInternalServerError, "Failed to render report")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(content)
	}

	h.logger.Info().
		Str("chat_id", sessionID).
		Str("format", format).
		Msg("Served session report")
}

// reportTitle recovers the document title from the report's leading
// heading line
func reportTitle(markdown string) string {
	line, _, _ := strings.Cut(markdown, "\n")
	if title := strings.TrimSpace(strings.TrimPrefix(line, "# ")); title != "" {
		return title
	}
	return "Medical Content Review"
}
