package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrNoMessage is returned when the queue is empty
var ErrNoMessage = errors.New("no messages in queue")

// MessageTypeReview routes review tasks to the review handler
const MessageTypeReview = "review_task"

// QueueMessage is the envelope stored in the queue.
// Keep it simple - just enough to route the task.
type QueueMessage struct {
	TaskID  string          `json:"task_id"` // task_{uuid}, unique per submission
	Type    string          `json:"type"`    // Handler routing key
	Payload json.RawMessage `json:"payload"` // Task-specific data (passed through)
}

// ReviewTask is the payload handed from intake to processing. It carries
// everything the processing side needs so redelivery is self-contained.
// Text is not required: media-only turns are legal.
type ReviewTask struct {
	SessionID  string    `json:"session_id" validate:"required"`
	UserID     string    `json:"user_id" validate:"required"`
	MessageID  string    `json:"message_id" validate:"required"`
	Text       string    `json:"text"`
	MediaIDs   []string  `json:"media_ids,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Validate checks the task has the references processing depends on
func (t *ReviewTask) Validate() error {
	if err := validator.New().Struct(t); err != nil {
		return fmt.Errorf("invalid review task: %w", err)
	}
	return nil
}

// NewReviewMessage wraps a review task in a queue envelope
func NewReviewMessage(taskID string, task *ReviewTask) (QueueMessage, error) {
	if err := task.Validate(); err != nil {
		return QueueMessage{}, err
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return QueueMessage{}, err
	}

	return QueueMessage{
		TaskID:  taskID,
		Type:    MessageTypeReview,
		Payload: payload,
	}, nil
}

// DecodeReviewTask unpacks and validates a review task payload
func DecodeReviewTask(msg *QueueMessage) (*ReviewTask, error) {
	if msg.Type != MessageTypeReview {
		return nil, errors.New("message is not a review task")
	}

	var task ReviewTask
	if err := json.Unmarshal(msg.Payload, &task); err != nil {
		return nil, err
	}
	if err := task.Validate(); err != nil {
		return nil, err
	}

	return &task, nil
}
