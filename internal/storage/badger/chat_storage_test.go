package badger

import (
	"context"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/claimlens/internal/interfaces"
	"github.com/ternarybob/claimlens/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

func newTestDB(t *testing.T) *BadgerDB {
	t.Helper()

	options := badgerhold.DefaultOptions
	options.Dir = t.TempDir()
	options.ValueDir = options.Dir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	return &BadgerDB{store: store}
}

func TestChatSessionLifecycle(t *testing.T) {
	db := newTestDB(t)
	logger := arbor.NewLogger()
	storage := NewChatStorage(db, logger)

	ctx := context.Background()

	// 1. Save a session and read it back
	session := &models.ChatSession{
		ID:     "chat_1",
		UserID: "user-a",
		Status: models.SessionStatusProcessing,
	}
	if err := storage.SaveSession(ctx, session); err != nil {
		t.Fatalf("Failed to save session: %v", err)
	}

	got, err := storage.GetSession(ctx, "chat_1")
	if err != nil {
		t.Fatalf("Failed to get session: %v", err)
	}
	if got.UserID != "user-a" {
		t.Errorf("Expected user-a, got %s", got.UserID)
	}
	if got.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be set on save")
	}

	// 2. Unknown IDs map to the not-found sentinel
	if _, err := storage.GetSession(ctx, "chat_missing"); err != interfaces.ErrNotFound {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	// 3. Listing is scoped to the requested user
	other := &models.ChatSession{ID: "chat_2", UserID: "user-b", Status: models.SessionStatusCompleted}
	if err := storage.SaveSession(ctx, other); err != nil {
		t.Fatalf("Failed to save second session: %v", err)
	}

	sessions, err := storage.ListSessionsByUser(ctx, "user-a", 10)
	if err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("Expected 1 session for user-a, got %d", len(sessions))
	}
	if sessions[0].ID != "chat_1" {
		t.Errorf("Expected chat_1, got %s", sessions[0].ID)
	}

	// 4. Status updates persist
	got.Status = models.SessionStatusCompleted
	if err := storage.SaveSession(ctx, got); err != nil {
		t.Fatalf("Failed to update session: %v", err)
	}
	updated, err := storage.GetSession(ctx, "chat_1")
	if err != nil {
		t.Fatalf("Failed to re-read session: %v", err)
	}
	if updated.Status != models.SessionStatusCompleted {
		t.Errorf("Expected completed, got %s", updated.Status)
	}
}

func TestChatMessageOrdering(t *testing.T) {
	db := newTestDB(t)
	logger := arbor.NewLogger()
	storage := NewChatStorage(db, logger)

	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	ids := []string{"msg_c", "msg_a", "msg_b"}
	for i, id := range ids {
		msg := &models.ChatMessage{
			ID:        id,
			SessionID: "chat_1",
			UserID:    "user-a",
			Role:      models.MessageRoleUser,
			Text:      "message " + id,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := storage.SaveMessage(ctx, msg); err != nil {
			t.Fatalf("Failed to save message %s: %v", id, err)
		}
	}

	// Unrelated session message must not appear
	stray := &models.ChatMessage{ID: "msg_x", SessionID: "chat_9", UserID: "user-a", Role: models.MessageRoleUser, Text: "stray"}
	if err := storage.SaveMessage(ctx, stray); err != nil {
		t.Fatalf("Failed to save stray message: %v", err)
	}

	messages, err := storage.ListMessagesBySession(ctx, "chat_1")
	if err != nil {
		t.Fatalf("Failed to list messages: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(messages))
	}
	// Chronological order, not ID order
	for i, want := range []string{"msg_c", "msg_a", "msg_b"} {
		if messages[i].ID != want {
			t.Errorf("Position %d: expected %s, got %s", i, want, messages[i].ID)
		}
	}

	count, err := storage.CountMessagesBySession(ctx, "chat_1")
	if err != nil {
		t.Fatalf("Failed to count messages: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected count 3, got %d", count)
	}
}

func TestReviewRecordsBySession(t *testing.T) {
	db := newTestDB(t)
	logger := arbor.NewLogger()
	storage := NewReviewStorage(db, logger)

	ctx := context.Background()

	claims := []*models.ClaimRecord{
		{ID: "rec_1", SessionID: "chat_1", MessageID: "msg_1", Text: "Vitamin C cures colds", Classification: models.ClassificationMedicalClaim},
		{ID: "rec_2", SessionID: "chat_1", MessageID: "msg_1", Text: "Our office is in Sydney", Classification: models.ClassificationNotMedical},
	}
	if err := storage.SaveClaims(ctx, claims); err != nil {
		t.Fatalf("Failed to save claims: %v", err)
	}

	imprecise := []*models.ImpreciseLanguageRecord{
		{ID: "rec_3", SessionID: "chat_1", MessageID: "msg_1", Text: "many patients", Suggestion: "state the measured proportion"},
	}
	if err := storage.SaveImprecise(ctx, imprecise); err != nil {
		t.Fatalf("Failed to save imprecise-language records: %v", err)
	}

	gotClaims, err := storage.ListClaimsBySession(ctx, "chat_1")
	if err != nil {
		t.Fatalf("Failed to list claims: %v", err)
	}
	if len(gotClaims) != 2 {
		t.Fatalf("Expected 2 claims, got %d", len(gotClaims))
	}

	gotImprecise, err := storage.ListImpreciseBySession(ctx, "chat_1")
	if err != nil {
		t.Fatalf("Failed to list imprecise-language records: %v", err)
	}
	if len(gotImprecise) != 1 {
		t.Fatalf("Expected 1 imprecise-language record, got %d", len(gotImprecise))
	}
	if gotImprecise[0].Suggestion == "" {
		t.Error("Expected suggestion to round-trip")
	}

	// Different session sees nothing
	empty, err := storage.ListClaimsBySession(ctx, "chat_2")
	if err != nil {
		t.Fatalf("Failed to list claims for empty session: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("Expected 0 claims for chat_2, got %d", len(empty))
	}
}
