package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/claimlens/internal/common"
	"github.com/ternarybob/claimlens/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db     *BadgerDB
	chat   interfaces.ChatStorage
	review interfaces.ReviewStorage
	media  interfaces.MediaStorage
	kv     interfaces.KeyValueStorage
	logger arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:     db,
		chat:   NewChatStorage(db, logger),
		review: NewReviewStorage(db, logger),
		media:  NewMediaStorage(db, logger),
		kv:     NewKVStorage(db, logger),
		logger: logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// ChatStorage returns the Chat storage interface
func (m *Manager) ChatStorage() interfaces.ChatStorage {
	return m.chat
}

// ReviewStorage returns the Review storage interface
func (m *Manager) ReviewStorage() interfaces.ReviewStorage {
	return m.review
}

// MediaStorage returns the Media storage interface
func (m *Manager) MediaStorage() interfaces.MediaStorage {
	return m.media
}

// KeyValueStorage returns the KeyValue storage interface
func (m *Manager) KeyValueStorage() interfaces.KeyValueStorage {
	return m.kv
}

// DB returns the underlying database connection
func (m *Manager) DB() interface{} {
	if m.db != nil {
		return m.db.Store()
	}
	return nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
