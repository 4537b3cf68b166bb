package interfaces

import (
	"context"

	"github.com/ternarybob/claimlens/internal/models"
)

// ReviewService runs the content review pipeline for a single task.
// ProcessTask is pure with respect to transport: the worker pool and the
// queue dispatch endpoint both call it with the same semantics.
type ReviewService interface {
	// ProcessTask reviews one user message: function-calling extraction,
	// claim verification, then a single flush of records and the session
	// status transition. No records are written when it returns an error.
	ProcessTask(ctx context.Context, task *models.ReviewTask) error
}
