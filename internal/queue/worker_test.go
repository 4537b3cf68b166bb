package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/claimlens/internal/models"
)

func newTestPool(t *testing.T, mgr *BadgerManager, concurrency int) *WorkerPool {
	t.Helper()

	pool := NewWorkerPool(mgr, 10*time.Millisecond, concurrency, arbor.NewLogger())
	t.Cleanup(func() { pool.Stop() })
	return pool
}

// waitFor polls until the condition holds or the deadline passes
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestWorkerPoolProcessesAndAcks(t *testing.T) {
	db := newTestQueueDB(t)
	mgr, err := NewBadgerManager(db, "reviews", time.Minute, 3)
	if err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	seen := make(map[string]bool)

	pool := newTestPool(t, mgr, 2)
	pool.RegisterHandler(models.MessageTypeReview, func(ctx context.Context, msg *models.QueueMessage) error {
		mu.Lock()
		seen[msg.TaskID] = true
		mu.Unlock()
		return nil
	})

	ctx := context.Background()
	if err := mgr.Enqueue(ctx, reviewMessage(t, "task_1", "chat_1")); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}
	if err := mgr.Enqueue(ctx, reviewMessage(t, "task_2", "chat_2")); err != nil {
		t.Fatalf("Failed to enqueue second: %v", err)
	}

	if err := pool.Start(); err != nil {
		t.Fatalf("Failed to start pool: %v", err)
	}

	drained := waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen["task_1"] && seen["task_2"]
	})
	if !drained {
		t.Fatal("Workers did not process both messages in time")
	}

	if !waitFor(t, time.Second, func() bool {
		size, err := mgr.Size(ctx)
		return err == nil && size == 0
	}) {
		size, _ := mgr.Size(ctx)
		t.Errorf("Expected queue drained after acks, size %d", size)
	}
}

func TestWorkerPoolRedeliversFailedMessages(t *testing.T) {
	db := newTestQueueDB(t)
	mgr, err := NewBadgerManager(db, "reviews", 50*time.Millisecond, 5)
	if err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	attempts := 0

	pool := newTestPool(t, mgr, 1)
	pool.RegisterHandler(models.MessageTypeReview, func(ctx context.Context, msg *models.QueueMessage) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts == 1 {
			return errors.New("transient failure")
		}
		return nil
	})

	ctx := context.Background()
	if err := mgr.Enqueue(ctx, reviewMessage(t, "task_1", "chat_1")); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}

	if err := pool.Start(); err != nil {
		t.Fatalf("Failed to start pool: %v", err)
	}

	// First attempt fails, the message reappears after the visibility
	// timeout and the second attempt succeeds
	retried := waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return attempts >= 2
	})
	if !retried {
		mu.Lock()
		got := attempts
		mu.Unlock()
		t.Fatalf("Expected redelivery after handler failure, attempts %d", got)
	}

	if !waitFor(t, time.Second, func() bool {
		size, err := mgr.Size(ctx)
		return err == nil && size == 0
	}) {
		size, _ := mgr.Size(ctx)
		t.Errorf("Expected queue drained after successful retry, size %d", size)
	}
}

func TestWorkerPoolDropsUnhandledTypes(t *testing.T) {
	db := newTestQueueDB(t)
	mgr, err := NewBadgerManager(db, "reviews", time.Minute, 3)
	if err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	handled := false
	pool := newTestPool(t, mgr, 1)
	pool.RegisterHandler(models.MessageTypeReview, func(ctx context.Context, msg *models.QueueMessage) error {
		mu.Lock()
		handled = true
		mu.Unlock()
		return nil
	})

	ctx := context.Background()
	orphan := models.QueueMessage{
		TaskID:  "task_orphan",
		Type:    "unknown_type",
		Payload: json.RawMessage(`{}`),
	}
	if err := mgr.Enqueue(ctx, orphan); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}

	if err := pool.Start(); err != nil {
		t.Fatalf("Failed to start pool: %v", err)
	}

	// An unroutable message is deleted, not retried forever
	if !waitFor(t, 2*time.Second, func() bool {
		size, err := mgr.Size(ctx)
		return err == nil && size == 0
	}) {
		size, _ := mgr.Size(ctx)
		t.Fatalf("Expected unhandled message dropped, size %d", size)
	}

	mu.Lock()
	defer mu.Unlock()
	if handled {
		t.Error("Review handler should not run for an unknown message type")
	}
}
