package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/claimlens/internal/app"
)

// Server timeouts. The write timeout must outlast a full synchronous
// review on /chat/task, which holds the response through extraction and
// claim verification. WebSocket connections hijack out of these limits
// at upgrade time.
const (
	readTimeout  = 15 * time.Second
	writeTimeout = 10 * time.Minute
	idleTimeout  = 60 * time.Second
)

// Server wires the app's handlers into an http.Server
type Server struct {
	app    *app.App
	router *http.ServeMux
	server *http.Server
}

// New builds the router, wraps it in the middleware chain and prepares
// the listener address from config
func New(application *app.App) *Server {
	s := &Server{
		app: application,
	}
	s.router = s.setupRoutes()

	s.server = &http.Server{
		Addr:         s.listenAddr(),
		Handler:      s.withMiddleware(s.router),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	return s
}

// Start serves until Shutdown is called. A closed-server return is not
// an error.
func (s *Server) Start() error {
	s.app.Logger.Info().
		Str("address", s.listenAddr()).
		Msg("HTTP server starting")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests until the context expires
func (s *Server) Shutdown(ctx context.Context) error {
	s.app.Logger.Info().Msg("Shutting down HTTP server...")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.app.Logger.Info().Msg("HTTP server stopped")
	return nil
}

func (s *Server) listenAddr() string {
	return fmt.Sprintf("%s:%d", s.app.Config.Server.Host, s.app.Config.Server.Port)
}
