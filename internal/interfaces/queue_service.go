package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/claimlens/internal/models"
)

// QueueHandler processes a single queue message. A nil return acknowledges
// the message, an error leaves it for redelivery after the visibility
// timeout expires.
type QueueHandler func(ctx context.Context, msg *models.QueueMessage) error

// QueueManager manages the persistent message queue
type QueueManager interface {
	// Enqueue appends a message, visible immediately
	Enqueue(ctx context.Context, msg models.QueueMessage) error

	// EnqueueWithDelay appends a message that becomes visible after delay
	EnqueueWithDelay(ctx context.Context, msg models.QueueMessage, delay time.Duration) error

	// Receive claims the oldest visible message and returns it with an ack
	// function. Returns models.ErrNoMessage when the queue is empty.
	// Messages past the max receive count are dropped, not returned.
	Receive(ctx context.Context) (*models.QueueMessage, func() error, error)

	// Extend pushes out the visibility deadline of a claimed message
	Extend(ctx context.Context, messageID string, duration time.Duration) error

	// Size returns the number of stored messages, claimed ones included
	Size(ctx context.Context) (int, error)

	// Close stops the manager. The underlying database is owned by the
	// storage manager and is not closed here.
	Close() error
}

// WorkerPool manages concurrent message processing
type WorkerPool interface {
	RegisterHandler(messageType string, handler QueueHandler)
	Start() error
	Stop() error
}
