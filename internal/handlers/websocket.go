// -----------------------------------------------------------------------
// Last Modified: Tuesday, 21st April 2026 03:18:55 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/claimlens/internal/common"
	"github.com/ternarybob/claimlens/internal/interfaces"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WebSocketHandler pushes session lifecycle events to connected clients
// so they do not have to poll /chat/{id}/status
type WebSocketHandler struct {
	logger           arbor.ILogger
	clients          map[*websocket.Conn]bool
	clientMutex      map[*websocket.Conn]*sync.Mutex
	mu               sync.RWMutex
	eventService     interfaces.EventService
	allowedEvents    map[string]bool // Whitelist of events to broadcast (empty = allow all)
	serverInstanceID string          // Unique ID generated on startup - clients use to detect server restart
}

func NewWebSocketHandler(eventService interfaces.EventService, logger arbor.ILogger, config *common.WebSocketConfig) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:           logger,
		clients:          make(map[*websocket.Conn]bool),
		clientMutex:      make(map[*websocket.Conn]*sync.Mutex),
		eventService:     eventService,
		serverInstanceID: uuid.New().String(),
	}

	h.allowedEvents = make(map[string]bool)
	if config != nil && len(config.AllowedEvents) > 0 {
		for _, eventType := range config.AllowedEvents {
			h.allowedEvents[eventType] = true
		}
		logger.Debug().
			Int("allowed_events", len(h.allowedEvents)).
			Msg("Initialized event whitelist for WebSocketHandler")
	}

	return h
}

// HandleWebSocket upgrades the connection and keeps it registered until
// the client goes away
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.clientMutex[conn] = &sync.Mutex{}
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Msgf("WebSocket client connected (total: %d)", clientCount)

	h.sendHello(conn)

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		delete(h.clientMutex, conn)
		remaining := len(h.clients)
		h.mu.Unlock()

		conn.Close()
		h.logger.Debug().Msgf("WebSocket client disconnected (remaining: %d)", remaining)
	}()

	// Read messages from client (keep connection alive)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			break
		}
	}
}

// sendHello tells a fresh client which server instance it reached so it
// can reset local state after a restart
func (h *WebSocketHandler) sendHello(conn *websocket.Conn) {
	data, err := json.Marshal(map[string]interface{}{
		"type":               "connected",
		"server_instance_id": h.serverInstanceID,
		"timestamp":          time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return
	}

	h.mu.RLock()
	mutex := h.clientMutex[conn]
	h.mu.RUnlock()
	if mutex == nil {
		return
	}

	mutex.Lock()
	defer mutex.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to send hello to client")
	}
}

// SubscribeToEvents wires the handler onto the event bus. Session status
// transitions, title updates and review completions all go out as flat
// JSON messages keyed by type.
func (h *WebSocketHandler) SubscribeToEvents() {
	if h.eventService == nil {
		return
	}

	for _, eventType := range []interfaces.EventType{
		interfaces.EventSessionStatus,
		interfaces.EventTitleUpdated,
		interfaces.EventReviewCompleted,
	} {
		eventType := eventType
		h.eventService.Subscribe(eventType, func(ctx context.Context, event interfaces.Event) error {
			h.broadcastEvent(string(eventType), event.Payload)
			return nil
		})
	}
}

// broadcastEvent sends one event to every connected client. The payload
// map is flattened with the event type under "type".
func (h *WebSocketHandler) broadcastEvent(eventType string, payload interface{}) {
	if len(h.allowedEvents) > 0 && !h.allowedEvents[eventType] {
		return
	}

	message := map[string]interface{}{"type": eventType}
	if fields, ok := payload.(map[string]interface{}); ok {
		for key, value := range fields {
			message[key] = value
		}
	} else if payload != nil {
		message["payload"] = payload
	}

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error().Err(err).Str("event_type", eventType).Msg("Failed to marshal event message")
		return
	}

	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	mutexes := make([]*sync.Mutex, 0, len(h.clients))
	for conn := range h.clients {
		clients = append(clients, conn)
		mutexes = append(mutexes, h.clientMutex[conn])
	}
	h.mu.RUnlock()

	for i, conn := range clients {
		mutex := mutexes[i]
		mutex.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		mutex.Unlock()

		if err != nil {
			h.logger.Warn().Err(err).Str("event_type", eventType).Msg("Failed to send event to client")
		}
	}
}

// ClientCount reports how many clients are connected
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
