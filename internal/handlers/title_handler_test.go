package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/claimlens/internal/interfaces"
)

// mockTitleService implements interfaces.TitleService for testing
type mockTitleService struct {
	sessionFunc func(ctx context.Context, identity *interfaces.Identity, sessionID string) (string, error)
	textFunc    func(ctx context.Context, text string) (string, error)
}

func (m *mockTitleService) GenerateTitle(ctx context.Context, identity *interfaces.Identity, sessionID string) (string, error) {
	if m.sessionFunc != nil {
		return m.sessionFunc(ctx, identity, sessionID)
	}
	return "", errors.New("not configured")
}

func (m *mockTitleService) GenerateTitleForText(ctx context.Context, text string) (string, error) {
	if m.textFunc != nil {
		return m.textFunc(ctx, text)
	}
	return "", errors.New("not configured")
}

func TestTitleHandler_SessionVariant(t *testing.T) {
	mock := &mockTitleService{
		sessionFunc: func(ctx context.Context, identity *interfaces.Identity, sessionID string) (string, error) {
			if sessionID != "chat_1" {
				t.Errorf("Expected chat_1, got %s", sessionID)
			}
			return "Aspirin Claims Review", nil
		},
	}
	handler := NewTitleHandler(mock, arbor.NewLogger())

	// GET with query parameter
	req := authed(httptest.NewRequest("GET", "/chat/title?chat_id=chat_1", nil))
	rec := httptest.NewRecorder()
	handler.TitleHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["title"] != "Aspirin Claims Review" {
		t.Errorf("Unexpected title: %v", body["title"])
	}
	if body["chat_id"] != "chat_1" {
		t.Errorf("Expected chat_id echoed, got %v", body["chat_id"])
	}

	// POST with body
	req = authed(httptest.NewRequest("POST", "/chat/title", strings.NewReader(`{"chat_id":"chat_1"}`)))
	rec = httptest.NewRecorder()
	handler.TitleHandler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200 for POST, got %d", rec.Code)
	}
}

func TestTitleHandler_TextVariant(t *testing.T) {
	mock := &mockTitleService{
		textFunc: func(ctx context.Context, text string) (string, error) {
			if !strings.Contains(text, "vitamin D") {
				t.Errorf("Expected submitted text, got %q", text)
			}
			return "Vitamin D Overview", nil
		},
	}
	handler := NewTitleHandler(mock, arbor.NewLogger())

	req := authed(httptest.NewRequest("POST", "/chat/title", strings.NewReader(`{"text":"Does vitamin D prevent colds?"}`)))
	rec := httptest.NewRecorder()
	handler.TitleHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["title"] != "Vitamin D Overview" {
		t.Errorf("Unexpected title: %v", body["title"])
	}
	if _, present := body["chat_id"]; present {
		t.Error("Text variant must not echo a chat_id")
	}
}

func TestTitleHandler_Rejections(t *testing.T) {
	handler := NewTitleHandler(&mockTitleService{}, arbor.NewLogger())

	// No identity
	req := httptest.NewRequest("GET", "/chat/title?chat_id=chat_1", nil)
	rec := httptest.NewRecorder()
	handler.TitleHandler(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rec.Code)
	}

	// Neither chat_id nor text
	req = authed(httptest.NewRequest("POST", "/chat/title", strings.NewReader(`{}`)))
	rec = httptest.NewRecorder()
	handler.TitleHandler(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestTitleHandler_UpstreamFailure(t *testing.T) {
	mock := &mockTitleService{
		sessionFunc: func(ctx context.Context, identity *interfaces.Identity, sessionID string) (string, error) {
			return "", errors.New("title generation failed: api unavailable")
		},
	}
	handler := NewTitleHandler(mock, arbor.NewLogger())

	req := authed(httptest.NewRequest("GET", "/chat/title?chat_id=chat_1", nil))
	rec := httptest.NewRecorder()
	handler.TitleHandler(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("Expected status 502, got %d", rec.Code)
	}

	// Ownership failures keep their own code
	mock.sessionFunc = func(ctx context.Context, identity *interfaces.Identity, sessionID string) (string, error) {
		return "", interfaces.ErrForbidden
	}
	req = authed(httptest.NewRequest("GET", "/chat/title?chat_id=chat_2", nil))
	rec = httptest.NewRecorder()
	handler.TitleHandler(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("Expected status 403, got %d", rec.Code)
	}
}
