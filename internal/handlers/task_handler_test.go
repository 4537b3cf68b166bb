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
	"github.com/ternarybob/claimlens/internal/models"
)

// stubAuthService implements interfaces.AuthService for testing
type stubAuthService struct {
	queueToken string
}

func (s *stubAuthService) VerifyBearer(authorization string) (*interfaces.Identity, error) {
	return nil, interfaces.ErrUnauthorized
}

func (s *stubAuthService) VerifyQueueToken(token string) error {
	if token != s.queueToken {
		return interfaces.ErrForbidden
	}
	return nil
}

// mockReviewService implements interfaces.ReviewService for testing
type mockReviewService struct {
	calls []*models.ReviewTask
	err   error
}

func (m *mockReviewService) ProcessTask(ctx context.Context, task *models.ReviewTask) error {
	m.calls = append(m.calls, task)
	return m.err
}

const taskBody = `{"session_id":"chat_1","user_id":"user_1","message_id":"msg_1","text":"Aspirin cures everything"}`

func TestProcessHandler_Success(t *testing.T) {
	review := &mockReviewService{}
	handler := NewTaskHandler(&stubAuthService{queueToken: "secret"}, review, arbor.NewLogger())

	req := httptest.NewRequest("POST", "/chat/task", strings.NewReader(taskBody))
	req.Header.Set(queueTokenHeader, "secret")
	rec := httptest.NewRecorder()
	handler.ProcessHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if len(review.calls) != 1 {
		t.Fatalf("Expected one ProcessTask call, got %d", len(review.calls))
	}
	if review.calls[0].SessionID != "chat_1" || review.calls[0].MessageID != "msg_1" {
		t.Errorf("Task references lost in transit: %+v", review.calls[0])
	}
}

func TestProcessHandler_BadToken(t *testing.T) {
	review := &mockReviewService{}
	handler := NewTaskHandler(&stubAuthService{queueToken: "secret"}, review, arbor.NewLogger())

	for _, token := range []string{"", "wrong"} {
		req := httptest.NewRequest("POST", "/chat/task", strings.NewReader(taskBody))
		if token != "" {
			req.Header.Set(queueTokenHeader, token)
		}
		rec := httptest.NewRecorder()
		handler.ProcessHandler(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Errorf("Token %q: expected status 403, got %d", token, rec.Code)
		}
	}
	if len(review.calls) != 0 {
		t.Errorf("No task should process without the queue token, got %d calls", len(review.calls))
	}
}

func TestProcessHandler_InvalidPayload(t *testing.T) {
	review := &mockReviewService{}
	handler := NewTaskHandler(&stubAuthService{queueToken: "secret"}, review, arbor.NewLogger())

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"session_id":`},
		{"missing references", `{"text":"hello"}`},
	}
	for _, tc := range cases {
		req := httptest.NewRequest("POST", "/chat/task", strings.NewReader(tc.body))
		req.Header.Set(queueTokenHeader, "secret")
		rec := httptest.NewRecorder()
		handler.ProcessHandler(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status 400, got %d", tc.name, rec.Code)
		}
	}
	if len(review.calls) != 0 {
		t.Errorf("Invalid payloads must not reach processing, got %d calls", len(review.calls))
	}
}

func TestProcessHandler_ProcessingFailure(t *testing.T) {
	review := &mockReviewService{err: errors.New("model unavailable")}
	handler := NewTaskHandler(&stubAuthService{queueToken: "secret"}, review, arbor.NewLogger())

	req := httptest.NewRequest("POST", "/chat/task", strings.NewReader(taskBody))
	req.Header.Set(queueTokenHeader, "secret")
	rec := httptest.NewRecorder()
	handler.ProcessHandler(rec, req)

	// 5xx so a pushing queue redelivers
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("Expected status 502, got %d", rec.Code)
	}
}
