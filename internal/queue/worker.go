package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/claimlens/internal/interfaces"
	"github.com/ternarybob/claimlens/internal/models"
)

// WorkerPool manages a pool of workers that process queue messages
type WorkerPool struct {
	queueMgr     *BadgerManager
	handlers     map[string]interfaces.QueueHandler
	pollInterval time.Duration
	concurrency  int
	logger       arbor.ILogger
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(queueMgr *BadgerManager, pollInterval time.Duration, concurrency int, logger arbor.ILogger) *WorkerPool {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		queueMgr:     queueMgr,
		handlers:     make(map[string]interfaces.QueueHandler),
		pollInterval: pollInterval,
		concurrency:  concurrency,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// RegisterHandler registers a message type handler. A nil handler return
// acks the message; an error leaves it claimed for redelivery after the
// visibility timeout. Not safe to call after Start.
func (wp *WorkerPool) RegisterHandler(messageType string, handler interfaces.QueueHandler) {
	wp.handlers[messageType] = handler
	wp.logger.Debug().
		Str("message_type", messageType).
		Msg("Queue handler registered")
}

// Start starts the worker pool
func (wp *WorkerPool) Start() error {
	wp.logger.Info().
		Int("concurrency", wp.concurrency).
		Dur("poll_interval", wp.pollInterval).
		Msg("Starting worker pool")

	for i := 0; i < wp.concurrency; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}

	return nil
}

// Stop cancels the workers and waits for them to exit. In-flight handlers
// see their context cancelled; unacked messages reappear after the
// visibility timeout.
func (wp *WorkerPool) Stop() error {
	wp.logger.Info().Msg("Stopping worker pool")
	wp.cancel()
	wp.wg.Wait()
	return nil
}

// worker is the main worker loop that processes messages
func (wp *WorkerPool) worker(workerID int) {
	defer wp.wg.Done()

	// Stagger worker starts to spread polls across the interval
	staggerDelay := (wp.pollInterval / time.Duration(wp.concurrency)) * time.Duration(workerID)
	if staggerDelay > 0 {
		select {
		case <-wp.ctx.Done():
			return
		case <-time.After(staggerDelay):
		}
	}

	wp.logger.Debug().
		Int("worker_id", workerID).
		Dur("stagger_delay", staggerDelay).
		Msg("Worker started")

	ticker := time.NewTicker(wp.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-wp.ctx.Done():
			wp.logger.Debug().
				Int("worker_id", workerID).
				Msg("Worker stopped")
			return

		case <-ticker.C:
			if err := wp.processMessage(workerID); err != nil {
				// Empty polls and claim races with other workers are routine
				if errors.Is(err, models.ErrNoMessage) || errors.Is(err, badger.ErrConflict) {
					continue
				}
				wp.logger.Warn().
					Err(err).
					Int("worker_id", workerID).
					Msg("Error processing message")
			}
		}
	}
}

// processMessage receives and processes a single message
func (wp *WorkerPool) processMessage(workerID int) error {
	msg, ack, err := wp.queueMgr.Receive(wp.ctx)
	if err != nil {
		return err
	}

	wp.logger.Debug().
		Str("task_id", msg.TaskID).
		Str("type", msg.Type).
		Int("worker_id", workerID).
		Msg("Processing message")

	handler, exists := wp.handlers[msg.Type]
	if !exists {
		wp.logger.Error().
			Str("type", msg.Type).
			Str("task_id", msg.TaskID).
			Msg("No handler registered for message type")
		// Nothing will ever process this, drop it
		if ackErr := ack(); ackErr != nil {
			wp.logger.Warn().Err(ackErr).Msg("Failed to delete unhandled message")
		}
		return nil
	}

	startTime := time.Now()
	handlerErr := handler(wp.ctx, msg)
	duration := time.Since(startTime)

	if handlerErr != nil {
		// Leave the message claimed; it becomes visible again after the
		// timeout and redelivers up to the receive budget
		wp.logger.Error().
			Err(handlerErr).
			Str("task_id", msg.TaskID).
			Str("type", msg.Type).
			Dur("duration", duration).
			Int("worker_id", workerID).
			Msg("Handler failed, message left for redelivery")
		return nil
	}

	wp.logger.Info().
		Str("task_id", msg.TaskID).
		Str("type", msg.Type).
		Dur("duration", duration).
		Int("worker_id", workerID).
		Msg("Message processed")

	if err := ack(); err != nil {
		wp.logger.Warn().
			Err(err).
			Str("task_id", msg.TaskID).
			Msg("Failed to delete message after successful processing")
		return err
	}

	return nil
}
