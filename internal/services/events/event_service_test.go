package events

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/claimlens/internal/interfaces"
)

func TestPublishSyncDeliversToSubscribers(t *testing.T) {
	svc := NewService(arbor.NewLogger())

	var delivered int32
	handler := func(ctx context.Context, event interfaces.Event) error {
		atomic.AddInt32(&delivered, 1)
		return nil
	}

	require.NoError(t, svc.Subscribe(interfaces.EventSessionStatus, handler))
	require.NoError(t, svc.Subscribe(interfaces.EventSessionStatus, handler))

	err := svc.PublishSync(context.Background(), interfaces.Event{
		Type:    interfaces.EventSessionStatus,
		Payload: map[string]string{"session_id": "chat_1", "status": "completed"},
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&delivered))

	// Other event types do not reach these subscribers.
	err = svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventTitleUpdated})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&delivered))
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	svc := NewService(arbor.NewLogger())

	var delivered int32
	handler := func(ctx context.Context, event interfaces.Event) error {
		atomic.AddInt32(&delivered, 1)
		return nil
	}

	require.NoError(t, svc.Subscribe(interfaces.EventReviewCompleted, handler))
	require.NoError(t, svc.Unsubscribe(interfaces.EventReviewCompleted, handler))

	err := svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventReviewCompleted})
	require.NoError(t, err)
	assert.Equal(t, int32(0), atomic.LoadInt32(&delivered))

	// A second unsubscribe has nothing to remove.
	assert.Error(t, svc.Unsubscribe(interfaces.EventReviewCompleted, handler))
}

func TestPublishDetachesFromCallerContext(t *testing.T) {
	svc := NewService(arbor.NewLogger())

	received := make(chan struct{})
	handler := func(ctx context.Context, event interfaces.Event) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		close(received)
		return nil
	}

	require.NoError(t, svc.Subscribe(interfaces.EventSessionStatus, handler))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, svc.Publish(ctx, interfaces.Event{Type: interfaces.EventSessionStatus}))

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not run after caller context was canceled")
	}
}

func TestPublishSyncReturnsHandlerErrors(t *testing.T) {
	svc := NewService(arbor.NewLogger())

	failing := func(ctx context.Context, event interfaces.Event) error {
		return fmt.Errorf("handler broke")
	}
	passing := func(ctx context.Context, event interfaces.Event) error {
		return nil
	}

	require.NoError(t, svc.Subscribe(interfaces.EventTitleUpdated, failing))
	require.NoError(t, svc.Subscribe(interfaces.EventTitleUpdated, passing))

	err := svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventTitleUpdated})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler broke")
}
