package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/claimlens/internal/interfaces"
	"github.com/ternarybob/claimlens/internal/models"
)

// mockChatService implements interfaces.ChatService for testing
type mockChatService struct {
	intakeCalls int
	intakeFunc  func(ctx context.Context, identity *interfaces.Identity, req *interfaces.IntakeRequest) (*interfaces.IntakeResult, error)
	getFunc     func(ctx context.Context, identity *interfaces.Identity, sessionID string) (*interfaces.SessionDetail, error)
	statusFunc  func(ctx context.Context, identity *interfaces.Identity, sessionID string) (*models.ChatSession, error)
	listFunc    func(ctx context.Context, identity *interfaces.Identity, limit int) ([]*models.ChatSession, error)
}

func (m *mockChatService) Intake(ctx context.Context, identity *interfaces.Identity, req *interfaces.IntakeRequest) (*interfaces.IntakeResult, error) {
	m.intakeCalls++
	if m.intakeFunc != nil {
		return m.intakeFunc(ctx, identity, req)
	}
	return nil, nil
}

func (m *mockChatService) GetSession(ctx context.Context, identity *interfaces.Identity, sessionID string) (*interfaces.SessionDetail, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, identity, sessionID)
	}
	return nil, interfaces.ErrNotFound
}

func (m *mockChatService) GetStatus(ctx context.Context, identity *interfaces.Identity, sessionID string) (*models.ChatSession, error) {
	if m.statusFunc != nil {
		return m.statusFunc(ctx, identity, sessionID)
	}
	return nil, interfaces.ErrNotFound
}

func (m *mockChatService) ListSessions(ctx context.Context, identity *interfaces.Identity, limit int) ([]*models.ChatSession, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, identity, limit)
	}
	return nil, nil
}

// authed attaches a verified identity the way the auth middleware does
func authed(req *http.Request) *http.Request {
	return req.WithContext(WithIdentity(req.Context(), &interfaces.Identity{UserID: "user_1"}))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return body
}

func TestSubmitHandler_Accepted(t *testing.T) {
	mock := &mockChatService{
		intakeFunc: func(ctx context.Context, identity *interfaces.Identity, req *interfaces.IntakeRequest) (*interfaces.IntakeResult, error) {
			if identity.UserID != "user_1" {
				t.Errorf("Expected identity user_1, got %s", identity.UserID)
			}
			if req.Text != "Aspirin cures everything" {
				t.Errorf("Unexpected intake text: %q", req.Text)
			}
			return &interfaces.IntakeResult{
				Session: &models.ChatSession{ID: "chat_1", Status: models.SessionStatusProcessing},
				Message: &models.ChatMessage{ID: "msg_1"},
			}, nil
		},
	}
	handler := NewChatHandler(mock, arbor.NewLogger())

	req := authed(httptest.NewRequest("POST", "/chat", strings.NewReader(`{"message":"Aspirin cures everything"}`)))
	rec := httptest.NewRecorder()
	handler.SubmitHandler(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["success"] != true {
		t.Error("Expected success true")
	}
	if body["status"] != "processing" {
		t.Errorf("Expected status processing, got %v", body["status"])
	}
	if body["chat_id"] != "chat_1" || body["message_id"] != "msg_1" {
		t.Errorf("Unexpected references: %v / %v", body["chat_id"], body["message_id"])
	}
	if mock.intakeCalls != 1 {
		t.Errorf("Expected exactly one intake call, got %d", mock.intakeCalls)
	}
}

func TestSubmitHandler_Unauthenticated(t *testing.T) {
	mock := &mockChatService{}
	handler := NewChatHandler(mock, arbor.NewLogger())

	req := httptest.NewRequest("POST", "/chat", strings.NewReader(`{"message":"hello"}`))
	rec := httptest.NewRecorder()
	handler.SubmitHandler(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("Expected status 401, got %d", rec.Code)
	}
	if mock.intakeCalls != 0 {
		t.Errorf("Intake must not run without an identity, got %d calls", mock.intakeCalls)
	}
}

func TestSubmitHandler_BadRequests(t *testing.T) {
	mock := &mockChatService{}
	handler := NewChatHandler(mock, arbor.NewLogger())

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"message":`},
		{"missing message", `{"chat_id":"chat_1"}`},
		{"blank message", `{"message":"   "}`},
	}
	for _, tc := range cases {
		req := authed(httptest.NewRequest("POST", "/chat", strings.NewReader(tc.body)))
		rec := httptest.NewRecorder()
		handler.SubmitHandler(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status 400, got %d", tc.name, rec.Code)
		}
	}
	if mock.intakeCalls != 0 {
		t.Errorf("No bad request should reach intake, got %d calls", mock.intakeCalls)
	}
}

func TestSessionHandler(t *testing.T) {
	mock := &mockChatService{
		getFunc: func(ctx context.Context, identity *interfaces.Identity, sessionID string) (*interfaces.SessionDetail, error) {
			if sessionID != "chat_1" {
				return nil, interfaces.ErrNotFound
			}
			return &interfaces.SessionDetail{
				Session:  &models.ChatSession{ID: "chat_1", Status: models.SessionStatusCompleted},
				Messages: []*models.ChatMessage{{ID: "msg_1", Role: models.MessageRoleUser, Text: "hello"}},
				Claims:   []*models.ClaimRecord{{ID: "rec_1", Text: "Aspirin cures everything"}},
			}, nil
		},
	}
	handler := NewChatHandler(mock, arbor.NewLogger())

	req := authed(httptest.NewRequest("GET", "/chat/chat_1", nil))
	rec := httptest.NewRecorder()
	handler.SessionHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	session := body["session"].(map[string]interface{})
	if session["id"] != "chat_1" {
		t.Errorf("Expected session chat_1, got %v", session["id"])
	}
	if len(body["claims"].([]interface{})) != 1 {
		t.Error("Expected one claim record in detail")
	}

	// Unknown session maps to 404
	req = authed(httptest.NewRequest("GET", "/chat/chat_missing", nil))
	rec = httptest.NewRecorder()
	handler.SessionHandler(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}

func TestSessionHandler_Forbidden(t *testing.T) {
	mock := &mockChatService{
		getFunc: func(ctx context.Context, identity *interfaces.Identity, sessionID string) (*interfaces.SessionDetail, error) {
			return nil, interfaces.ErrForbidden
		},
	}
	handler := NewChatHandler(mock, arbor.NewLogger())

	req := authed(httptest.NewRequest("GET", "/chat/chat_2", nil))
	rec := httptest.NewRecorder()
	handler.SessionHandler(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("Expected status 403, got %d", rec.Code)
	}
}

func TestStatusHandler(t *testing.T) {
	updated := time.Date(2026, 4, 20, 10, 0, 0, 0, time.UTC)
	mock := &mockChatService{
		statusFunc: func(ctx context.Context, identity *interfaces.Identity, sessionID string) (*models.ChatSession, error) {
			return &models.ChatSession{ID: sessionID, Status: models.SessionStatusProcessing, UpdatedAt: updated}, nil
		},
	}
	handler := NewChatHandler(mock, arbor.NewLogger())

	req := authed(httptest.NewRequest("GET", "/chat/chat_1/status", nil))
	rec := httptest.NewRecorder()
	handler.StatusHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "processing" {
		t.Errorf("Expected processing, got %v", body["status"])
	}
	if body["chat_id"] != "chat_1" {
		t.Errorf("Expected chat_1, got %v", body["chat_id"])
	}
}

func TestListHandler(t *testing.T) {
	var gotLimit int
	mock := &mockChatService{
		listFunc: func(ctx context.Context, identity *interfaces.Identity, limit int) ([]*models.ChatSession, error) {
			gotLimit = limit
			return []*models.ChatSession{
				{ID: "chat_2", Status: models.SessionStatusCompleted},
				{ID: "chat_1", Status: models.SessionStatusCompleted},
			}, nil
		},
	}
	handler := NewChatHandler(mock, arbor.NewLogger())

	req := authed(httptest.NewRequest("GET", "/chat?limit=10", nil))
	rec := httptest.NewRecorder()
	handler.ListHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if gotLimit != 10 {
		t.Errorf("Expected limit 10 passed through, got %d", gotLimit)
	}
	body := decodeBody(t, rec)
	if int(body["count"].(float64)) != 2 {
		t.Errorf("Expected count 2, got %v", body["count"])
	}
}

func TestPathPart(t *testing.T) {
	req := httptest.NewRequest("GET", "/chat/chat_9/report", nil)
	if got := pathPart(req, 1); got != "chat_9" {
		t.Errorf("Expected chat_9, got %q", got)
	}
	if got := pathPart(req, 5); got != "" {
		t.Errorf("Expected empty for out of range, got %q", got)
	}
}
