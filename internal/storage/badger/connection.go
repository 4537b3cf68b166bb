package badger

import (
	"fmt"
	"os"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/claimlens/internal/common"
	"github.com/timshannon/badgerhold/v4"
)

// BadgerDB holds the badgerhold store backing sessions, messages, review
// records, media metadata, the KV store and the task queue
type BadgerDB struct {
	store  *badgerhold.Store
	logger arbor.ILogger
	config *common.BadgerConfig
}

// NewBadgerDB opens the store at config.Path, wiping it first when
// reset_on_startup is set
func NewBadgerDB(logger arbor.ILogger, config *common.BadgerConfig) (*BadgerDB, error) {
	if config.ResetOnStartup {
		resetDatabase(logger, config.Path)
	}

	if err := os.MkdirAll(config.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = config.Path
	options.ValueDir = config.Path
	options.Logger = nil // Badger's own logger is noisy; arbor covers it

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	logger.Debug().Str("path", config.Path).Msg("Badger database initialized")

	return &BadgerDB{
		store:  store,
		logger: logger,
		config: config,
	}, nil
}

// resetDatabase removes an existing database directory. Used for clean
// local runs; a failed removal is logged and the open proceeds against
// the old data.
func resetDatabase(logger arbor.ILogger, path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}

	logger.Debug().Str("path", path).Msg("Deleting existing database (reset_on_startup=true)")
	if err := os.RemoveAll(path); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("Failed to delete database directory")
	}
}

// Store returns the underlying badgerhold store
func (b *BadgerDB) Store() *badgerhold.Store {
	return b.store
}

// Close closes the database
func (b *BadgerDB) Close() error {
	if b.store != nil {
		return b.store.Close()
	}
	return nil
}
