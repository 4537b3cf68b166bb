package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/ternarybob/claimlens/internal/models"
)

func newTestQueueDB(t *testing.T) *badger.DB {
	t.Helper()

	opts := badger.DefaultOptions(t.TempDir())
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

func reviewMessage(t *testing.T, taskID, sessionID string) models.QueueMessage {
	t.Helper()

	msg, err := models.NewReviewMessage(taskID, &models.ReviewTask{
		SessionID: sessionID,
		UserID:    "user-a",
		MessageID: "msg_1",
		Text:      "Vitamin C cures the common cold",
	})
	if err != nil {
		t.Fatal(err)
	}
	return msg
}

// backdateMessage rewinds a stored message's enqueue time so retention
// tests do not have to wait out real clock time
func backdateMessage(t *testing.T, mgr *BadgerManager, id string, age time.Duration) {
	t.Helper()

	err := mgr.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(mgr.msgKey(id))
		if err != nil {
			return err
		}
		var stored storedMessage
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		}); err != nil {
			return err
		}
		stored.EnqueuedAt = stored.EnqueuedAt.Add(-age)
		data, err := json.Marshal(stored)
		if err != nil {
			return err
		}
		return txn.Set(mgr.msgKey(id), data)
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestQueueEnqueueReceiveAck(t *testing.T) {
	db := newTestQueueDB(t)
	mgr, err := NewBadgerManager(db, "reviews", time.Minute, 3)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()

	if err := mgr.Enqueue(ctx, reviewMessage(t, "task_1", "chat_1")); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}
	if err := mgr.Enqueue(ctx, reviewMessage(t, "task_2", "chat_2")); err != nil {
		t.Fatalf("Failed to enqueue second: %v", err)
	}

	size, err := mgr.Size(ctx)
	if err != nil {
		t.Fatalf("Failed to size queue: %v", err)
	}
	if size != 2 {
		t.Errorf("Expected size 2, got %d", size)
	}

	// Oldest first
	msg, ack, err := mgr.Receive(ctx)
	if err != nil {
		t.Fatalf("Failed to receive: %v", err)
	}
	if msg.TaskID != "task_1" {
		t.Errorf("Expected task_1 first, got %s", msg.TaskID)
	}

	task, err := models.DecodeReviewTask(msg)
	if err != nil {
		t.Fatalf("Failed to decode payload: %v", err)
	}
	if task.SessionID != "chat_1" {
		t.Errorf("Expected chat_1, got %s", task.SessionID)
	}

	if err := ack(); err != nil {
		t.Fatalf("Failed to ack: %v", err)
	}

	msg, ack, err = mgr.Receive(ctx)
	if err != nil {
		t.Fatalf("Failed to receive second: %v", err)
	}
	if msg.TaskID != "task_2" {
		t.Errorf("Expected task_2, got %s", msg.TaskID)
	}
	if err := ack(); err != nil {
		t.Fatalf("Failed to ack second: %v", err)
	}

	if _, _, err := mgr.Receive(ctx); err != models.ErrNoMessage {
		t.Errorf("Expected ErrNoMessage on empty queue, got %v", err)
	}

	size, err = mgr.Size(ctx)
	if err != nil {
		t.Fatalf("Failed to size drained queue: %v", err)
	}
	if size != 0 {
		t.Errorf("Expected size 0 after acks, got %d", size)
	}
}

func TestQueueRedeliveryAfterVisibilityTimeout(t *testing.T) {
	db := newTestQueueDB(t)
	mgr, err := NewBadgerManager(db, "reviews", 50*time.Millisecond, 3)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()

	if err := mgr.Enqueue(ctx, reviewMessage(t, "task_1", "chat_1")); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}

	// Claim without acking
	msg, _, err := mgr.Receive(ctx)
	if err != nil {
		t.Fatalf("Failed to receive: %v", err)
	}
	if msg.TaskID != "task_1" {
		t.Fatalf("Expected task_1, got %s", msg.TaskID)
	}

	// Invisible while claimed
	if _, _, err := mgr.Receive(ctx); err != models.ErrNoMessage {
		t.Errorf("Expected ErrNoMessage while claimed, got %v", err)
	}

	time.Sleep(80 * time.Millisecond)

	// Redelivered after the timeout
	msg, ack, err := mgr.Receive(ctx)
	if err != nil {
		t.Fatalf("Expected redelivery, got %v", err)
	}
	if msg.TaskID != "task_1" {
		t.Errorf("Expected task_1 redelivered, got %s", msg.TaskID)
	}
	if err := ack(); err != nil {
		t.Fatalf("Failed to ack redelivered message: %v", err)
	}
}

func TestQueueDropsAfterMaxReceive(t *testing.T) {
	db := newTestQueueDB(t)
	mgr, err := NewBadgerManager(db, "reviews", 10*time.Millisecond, 2)
	if err != nil {
		t.Fatal(err)
	}

	var droppedID string
	var droppedCount int
	mgr.SetDropHandler(func(msg models.QueueMessage, receiveCount int) {
		droppedID = msg.TaskID
		droppedCount = receiveCount
	})

	ctx := context.Background()

	if err := mgr.Enqueue(ctx, reviewMessage(t, "task_1", "chat_1")); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}

	// Burn through the receive budget without acking
	for attempt := 1; attempt <= 2; attempt++ {
		if _, _, err := mgr.Receive(ctx); err != nil {
			t.Fatalf("Attempt %d failed: %v", attempt, err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	// Third receive finds the poison message and drops it
	if _, _, err := mgr.Receive(ctx); err != models.ErrNoMessage {
		t.Errorf("Expected ErrNoMessage after drop, got %v", err)
	}
	if droppedID != "task_1" {
		t.Errorf("Expected drop handler for task_1, got %q", droppedID)
	}
	if droppedCount != 2 {
		t.Errorf("Expected receive count 2 at drop, got %d", droppedCount)
	}

	size, err := mgr.Size(ctx)
	if err != nil {
		t.Fatalf("Failed to size queue: %v", err)
	}
	if size != 0 {
		t.Errorf("Expected dropped message removed, size %d", size)
	}
}

func TestQueueDelayedVisibility(t *testing.T) {
	db := newTestQueueDB(t)
	mgr, err := NewBadgerManager(db, "reviews", time.Minute, 3)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()

	if err := mgr.EnqueueWithDelay(ctx, reviewMessage(t, "task_1", "chat_1"), 60*time.Millisecond); err != nil {
		t.Fatalf("Failed to enqueue with delay: %v", err)
	}

	if _, _, err := mgr.Receive(ctx); err != models.ErrNoMessage {
		t.Errorf("Expected delayed message to be invisible, got %v", err)
	}

	time.Sleep(80 * time.Millisecond)

	msg, ack, err := mgr.Receive(ctx)
	if err != nil {
		t.Fatalf("Expected message after delay, got %v", err)
	}
	if msg.TaskID != "task_1" {
		t.Errorf("Expected task_1, got %s", msg.TaskID)
	}
	if err := ack(); err != nil {
		t.Fatalf("Failed to ack: %v", err)
	}
}

func TestQueuePurgeExpired(t *testing.T) {
	db := newTestQueueDB(t)
	mgr, err := NewBadgerManager(db, "reviews", time.Minute, 3)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()

	if err := mgr.Enqueue(ctx, reviewMessage(t, "task_old", "chat_1")); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}
	if err := mgr.Enqueue(ctx, reviewMessage(t, "task_new", "chat_2")); err != nil {
		t.Fatalf("Failed to enqueue second: %v", err)
	}
	backdateMessage(t, mgr, "task_old", 100*time.Hour)

	if _, err := mgr.PurgeExpired(ctx, 0); err == nil {
		t.Error("Expected error for zero retention")
	}

	purged, err := mgr.PurgeExpired(ctx, 72*time.Hour)
	if err != nil {
		t.Fatalf("Failed to purge: %v", err)
	}
	if purged != 1 {
		t.Errorf("Expected 1 purged, got %d", purged)
	}

	size, err := mgr.Size(ctx)
	if err != nil {
		t.Fatalf("Failed to size queue: %v", err)
	}
	if size != 1 {
		t.Errorf("Expected 1 message left, got %d", size)
	}

	// The survivor is still deliverable
	msg, ack, err := mgr.Receive(ctx)
	if err != nil {
		t.Fatalf("Failed to receive survivor: %v", err)
	}
	if msg.TaskID != "task_new" {
		t.Errorf("Expected task_new to survive, got %s", msg.TaskID)
	}
	if err := ack(); err != nil {
		t.Fatalf("Failed to ack: %v", err)
	}
}

func TestQueuePurgeRemovesOrphanedIndexEntries(t *testing.T) {
	db := newTestQueueDB(t)
	mgr, err := NewBadgerManager(db, "reviews", time.Minute, 3)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()

	// An index entry whose message never landed, dated too far out for
	// Receive to scan past it
	future := time.Now().Add(48 * time.Hour)
	err = db.Update(func(txn *badger.Txn) error {
		return txn.Set(mgr.indexKey(future, "ghost"), []byte{})
	})
	if err != nil {
		t.Fatal(err)
	}

	purged, err := mgr.PurgeExpired(ctx, 72*time.Hour)
	if err != nil {
		t.Fatalf("Failed to purge: %v", err)
	}
	if purged != 0 {
		t.Errorf("Expected no messages purged, got %d", purged)
	}

	remaining := 0
	err = db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte("queue:reviews:index:")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			remaining++
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if remaining != 0 {
		t.Errorf("Expected orphaned index entry removed, found %d", remaining)
	}
}
