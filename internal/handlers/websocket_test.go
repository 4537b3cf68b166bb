package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/claimlens/internal/common"
)

func newTestWSServer(t *testing.T, config *common.WebSocketConfig) (*WebSocketHandler, string) {
	t.Helper()

	handler := NewWebSocketHandler(nil, arbor.NewLogger(), config)
	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	t.Cleanup(server.Close)

	return handler, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dialWS(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	return conn
}

func TestWebSocketHelloOnConnect(t *testing.T) {
	handler, wsURL := newTestWSServer(t, &common.WebSocketConfig{})
	conn := dialWS(t, wsURL)

	var hello map[string]interface{}
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("Failed to read hello message: %v", err)
	}

	if hello["type"] != "connected" {
		t.Errorf("Expected type connected, got %v", hello["type"])
	}
	if id, _ := hello["server_instance_id"].(string); id == "" {
		t.Error("Expected non-empty server_instance_id in hello")
	}

	if count := handler.ClientCount(); count != 1 {
		t.Errorf("Expected 1 connected client, got %d", count)
	}
}

func TestWebSocketBroadcastFlatEvents(t *testing.T) {
	handler, wsURL := newTestWSServer(t, &common.WebSocketConfig{})

	first := dialWS(t, wsURL)
	second := dialWS(t, wsURL)

	// Drain the hello each client receives on connect
	for _, conn := range []*websocket.Conn{first, second} {
		var hello map[string]interface{}
		if err := conn.ReadJSON(&hello); err != nil {
			t.Fatalf("Failed to read hello: %v", err)
		}
	}

	handler.broadcastEvent("session_status", map[string]interface{}{
		"session_id": "chat_1",
		"status":     "completed",
	})

	for i, conn := range []*websocket.Conn{first, second} {
		var msg map[string]interface{}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("Client %d failed to read event: %v", i, err)
		}

		if msg["type"] != "session_status" {
			t.Errorf("Client %d: expected type session_status, got %v", i, msg["type"])
		}
		// Payload fields merge into the top-level message
		if msg["session_id"] != "chat_1" {
			t.Errorf("Client %d: expected flat session_id field, got %v", i, msg["session_id"])
		}
		if msg["status"] != "completed" {
			t.Errorf("Client %d: expected flat status field, got %v", i, msg["status"])
		}
		if _, nested := msg["payload"]; nested {
			t.Errorf("Client %d: map payloads should not nest under a payload key", i)
		}
	}
}

func TestWebSocketAllowedEventsFilter(t *testing.T) {
	handler, wsURL := newTestWSServer(t, &common.WebSocketConfig{
		AllowedEvents: []string{"session_status"},
	})
	conn := dialWS(t, wsURL)

	var hello map[string]interface{}
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("Failed to read hello: %v", err)
	}

	// Filtered type never reaches the client; the allowed one arrives next
	handler.broadcastEvent("title_updated", map[string]interface{}{"session_id": "chat_1"})
	handler.broadcastEvent("session_status", map[string]interface{}{"session_id": "chat_2"})

	var msg map[string]interface{}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("Failed to read allowed event: %v", err)
	}
	if msg["type"] != "session_status" {
		t.Errorf("Expected the filtered event suppressed, got type %v", msg["type"])
	}
	if msg["session_id"] != "chat_2" {
		t.Errorf("Expected session_id chat_2, got %v", msg["session_id"])
	}
}
