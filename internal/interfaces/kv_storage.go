// -----------------------------------------------------------------------
// Last Modified: Tuesday, 14th April 2026 09:41:17 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package interfaces

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned when a key is not found in the key/value store
var ErrKeyNotFound = errors.New("key not found")

// KeyValuePair is one stored entry. Values are always strings: API
// credentials, prompt override text and config substitution variables.
type KeyValuePair struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description"` // Where the value came from or what it is for
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// KeyValueStorage is the generic key/value store. Implementations
// normalize keys to lowercase, so "Gemini_API_Key" and "gemini_api_key"
// address the same entry.
type KeyValueStorage interface {
	// Get retrieves a value by key, returns ErrKeyNotFound if missing
	Get(ctx context.Context, key string) (string, error)

	// GetPair retrieves a full KeyValuePair by key, returns ErrKeyNotFound if missing
	GetPair(ctx context.Context, key string) (*KeyValuePair, error)

	// Set inserts or updates a key/value pair with optional description
	Set(ctx context.Context, key string, value string, description string) error

	// Upsert inserts or updates a key/value pair, reporting true when a
	// new key was created. Variable file loading uses this to log loads
	// and updates separately.
	Upsert(ctx context.Context, key string, value string, description string) (bool, error)

	// Delete removes a key/value pair, returns ErrKeyNotFound if missing
	Delete(ctx context.Context, key string) error

	// List returns all pairs, most recently updated first
	List(ctx context.Context) ([]KeyValuePair, error)

	// GetAll returns every pair as a map, the shape {key} substitution
	// consumes
	GetAll(ctx context.Context) (map[string]string, error)

	// ListByPrefix returns pairs whose keys start with prefix, for
	// grouped lookups such as "prompt:"
	ListByPrefix(ctx context.Context, prefix string) ([]KeyValuePair, error)
}
