// -----------------------------------------------------------------------
// Last Modified: Wednesday, 22nd April 2026 09:12:40 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route (session status events)
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// Chat routes
	mux.HandleFunc("/chat", s.handleChatCollection) // POST (submit), GET (list)
	mux.HandleFunc("/chat/", s.handleChatRoutes)    // Task, title, media and per-session subroutes

	// System routes
	mux.HandleFunc("/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/version", s.app.APIHandler.VersionHandler)

	// 404 handler for unmatched routes
	mux.HandleFunc("/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleChatCollection routes /chat requests (submit and list)
func (s *Server) handleChatCollection(w http.ResponseWriter, r *http.Request) {
	RouteByMethod(w, r, MethodRouter{
		"POST": s.app.ChatHandler.SubmitHandler,
		"GET":  s.app.ChatHandler.ListHandler,
	})
}

// handleChatRoutes routes requests under /chat/ to the appropriate handler
func (s *Server) handleChatRoutes(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	// Fixed subresources first so they never read as session ids

	// POST /chat/task (queue dispatch, authenticated by X-Queue-Token)
	if path == "/chat/task" {
		s.app.TaskHandler.ProcessHandler(w, r)
		return
	}

	// GET/POST /chat/title
	if path == "/chat/title" {
		s.app.TitleHandler.TitleHandler(w, r)
		return
	}

	// POST /chat/media (multipart upload)
	if path == "/chat/media" {
		s.app.MediaHandler.UploadHandler(w, r)
		return
	}

	// GET /chat/media/{id}
	if strings.HasPrefix(path, "/chat/media/") {
		s.app.MediaHandler.DownloadHandler(w, r)
		return
	}

	// GET /chat/{id}/status
	if strings.HasSuffix(path, "/status") {
		s.app.ChatHandler.StatusHandler(w, r)
		return
	}

	// GET /chat/{id}/report
	if strings.HasSuffix(path, "/report") {
		s.app.ReportHandler.ReportHandler(w, r)
		return
	}

	// GET /chat/{id}
	s.app.ChatHandler.SessionHandler(w, r)
}
