package interfaces

import (
	"context"

	"github.com/ternarybob/claimlens/internal/models"
)

// ConfigService resolves prompt definitions and reviewable config values
// through a layered lookup: seed files, then KV overrides, then the remote
// config service when enabled. Resolved values are cached with a TTL.
type ConfigService interface {
	// GetPrompt returns the prompt definition for the given name.
	// Returns ErrKeyNotFound when no layer defines the prompt.
	GetPrompt(ctx context.Context, name string) (*models.PromptDefinition, error)

	// GetValue returns a single config value addressed by group and key,
	// for example ("review", "max_claims")
	GetValue(ctx context.Context, group string, key string) (string, error)

	// InvalidateCache drops all cached values, forcing fresh resolution
	// on the next lookup
	InvalidateCache()

	// Close releases the remote client and stops background refresh
	Close() error
}
