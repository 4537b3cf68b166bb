package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/ternarybob/claimlens/internal/models"
)

// storedMessage is the internal envelope persisted in Badger. Message data
// lives at queue:{name}:msg:{id}; a visibility index entry lives at
// queue:{name}:index:{visibleAt}:{id} so ready messages can be found with a
// bounded prefix scan.
type storedMessage struct {
	ID           string              `json:"id"`
	Body         models.QueueMessage `json:"body"`
	EnqueuedAt   time.Time           `json:"enqueued_at"`
	VisibleAt    time.Time           `json:"visible_at"`
	ReceiveCount int                 `json:"receive_count"`
}

// DropHandler is invoked after a message exhausts its receive budget and is
// removed from the queue. Runs outside the storage transaction.
type DropHandler func(msg models.QueueMessage, receiveCount int)

// BadgerManager implements a persistent queue using BadgerDB
type BadgerManager struct {
	db                *badger.DB
	queueName         string
	visibilityTimeout time.Duration
	maxReceive        int
	dropHandler       DropHandler
}

// NewBadgerManager creates a new Badger-backed queue manager
func NewBadgerManager(db *badger.DB, queueName string, visibilityTimeout time.Duration, maxReceive int) (*BadgerManager, error) {
	if db == nil {
		return nil, errors.New("badger db is required")
	}
	if queueName == "" {
		return nil, errors.New("queue name is required")
	}
	if visibilityTimeout <= 0 {
		visibilityTimeout = 5 * time.Minute
	}
	if maxReceive <= 0 {
		maxReceive = 3
	}

	return &BadgerManager{
		db:                db,
		queueName:         queueName,
		visibilityTimeout: visibilityTimeout,
		maxReceive:        maxReceive,
	}, nil
}

// SetDropHandler installs the callback invoked when poison messages are
// dropped. Must be called before workers start receiving.
func (m *BadgerManager) SetDropHandler(handler DropHandler) {
	m.dropHandler = handler
}

// Enqueue adds a message to the queue, visible immediately
func (m *BadgerManager) Enqueue(ctx context.Context, msg models.QueueMessage) error {
	return m.enqueue(ctx, msg, 0)
}

// EnqueueWithDelay adds a message that becomes visible after the delay
func (m *BadgerManager) EnqueueWithDelay(ctx context.Context, msg models.QueueMessage, delay time.Duration) error {
	return m.enqueue(ctx, msg, delay)
}

func (m *BadgerManager) enqueue(ctx context.Context, msg models.QueueMessage, delay time.Duration) error {
	if msg.TaskID == "" {
		return errors.New("queue message task ID is required")
	}

	now := time.Now()
	stored := storedMessage{
		ID:           msg.TaskID,
		Body:         msg,
		EnqueuedAt:   now,
		VisibleAt:    now.Add(delay),
		ReceiveCount: 0,
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal queue message: %w", err)
	}

	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(m.msgKey(stored.ID), data); err != nil {
			return err
		}
		return txn.Set(m.indexKey(stored.VisibleAt, stored.ID), []byte{})
	})
}

// Receive pulls the oldest visible message and returns it with an ack
// function. Acking deletes the message; not acking leaves it to reappear
// once the visibility timeout expires. Messages past the receive budget are
// deleted during the scan and reported through the drop handler.
func (m *BadgerManager) Receive(ctx context.Context) (*models.QueueMessage, func() error, error) {
	type droppedMessage struct {
		body         models.QueueMessage
		receiveCount int
	}

	var claimed storedMessage
	var found bool
	var dropped []droppedMessage

	err := m.db.Update(func(txn *badger.Txn) error {
		found = false
		dropped = dropped[:0]

		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte(fmt.Sprintf("queue:%s:index:", m.queueName))
		it := txn.NewIterator(opts)
		defer it.Close()

		now := time.Now()
		var oldIndexKey []byte

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)

			ts, id, err := m.parseIndexKey(key)
			if err != nil {
				continue
			}

			// Index keys sort by timestamp, so the first future entry ends
			// the scan.
			if ts.After(now) {
				break
			}

			item, err := txn.Get(m.msgKey(id))
			if err != nil {
				if err == badger.ErrKeyNotFound {
					// Orphaned index entry
					if err := txn.Delete(key); err != nil {
						return err
					}
					continue
				}
				return err
			}

			var stored storedMessage
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &stored)
			}); err != nil {
				return err
			}

			// The message is the source of truth for visibility; an index
			// entry that disagrees is stale and safe to drop.
			if stored.VisibleAt.After(now) {
				if err := txn.Delete(key); err != nil {
					return err
				}
				continue
			}

			if stored.ReceiveCount >= m.maxReceive {
				if err := txn.Delete(key); err != nil {
					return err
				}
				if err := txn.Delete(m.msgKey(id)); err != nil {
					return err
				}
				dropped = append(dropped, droppedMessage{body: stored.Body, receiveCount: stored.ReceiveCount})
				continue
			}

			claimed = stored
			oldIndexKey = key
			found = true
			break
		}

		if !found {
			// Commit so poison deletions stick even on an empty receive
			return nil
		}

		claimed.ReceiveCount++
		claimed.VisibleAt = time.Now().Add(m.visibilityTimeout)

		newData, err := json.Marshal(claimed)
		if err != nil {
			return err
		}
		if err := txn.Set(m.msgKey(claimed.ID), newData); err != nil {
			return err
		}

		if err := txn.Delete(oldIndexKey); err != nil {
			return err
		}
		return txn.Set(m.indexKey(claimed.VisibleAt, claimed.ID), []byte{})
	})

	if err != nil {
		return nil, nil, err
	}

	if m.dropHandler != nil {
		for _, d := range dropped {
			m.dropHandler(d.body, d.receiveCount)
		}
	}

	if !found {
		return nil, nil, models.ErrNoMessage
	}

	msgID := claimed.ID
	ackFn := func() error {
		return m.delete(msgID)
	}

	return &claimed.Body, ackFn, nil
}

// delete removes a message and its current index entry
func (m *BadgerManager) delete(messageID string) error {
	return m.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(m.msgKey(messageID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil // Already deleted
			}
			return err
		}

		var stored storedMessage
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		}); err != nil {
			return err
		}

		if err := txn.Delete(m.indexKey(stored.VisibleAt, messageID)); err != nil {
			if err != badger.ErrKeyNotFound {
				return err
			}
		}

		return txn.Delete(m.msgKey(messageID))
	})
}

// Extend pushes out the visibility deadline for a claimed message
func (m *BadgerManager) Extend(ctx context.Context, messageID string, duration time.Duration) error {
	return m.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(m.msgKey(messageID))
		if err != nil {
			return err
		}

		var stored storedMessage
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		}); err != nil {
			return err
		}

		oldVisibleAt := stored.VisibleAt
		stored.VisibleAt = time.Now().Add(duration)

		newData, err := json.Marshal(stored)
		if err != nil {
			return err
		}
		if err := txn.Set(m.msgKey(messageID), newData); err != nil {
			return err
		}

		if err := txn.Delete(m.indexKey(oldVisibleAt, messageID)); err != nil {
			if err != badger.ErrKeyNotFound {
				return err
			}
		}

		return txn.Set(m.indexKey(stored.VisibleAt, messageID), []byte{})
	})
}

// Size returns the number of stored messages, claimed ones included
func (m *BadgerManager) Size(ctx context.Context) (int, error) {
	count := 0
	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte(fmt.Sprintf("queue:%s:msg:", m.queueName))
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count queue messages: %w", err)
	}
	return count, nil
}

// PurgeExpired deletes messages that have sat in the queue longer than the
// retention window, plus index entries whose message no longer exists. Age
// is measured from enqueue time, so messages stuck in redelivery count too.
// Candidates are gathered in a read pass and deleted one per transaction.
func (m *BadgerManager) PurgeExpired(ctx context.Context, retention time.Duration) (int, error) {
	if retention <= 0 {
		return 0, errors.New("retention must be positive")
	}
	cutoff := time.Now().Add(-retention)

	var expired []string
	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := []byte(fmt.Sprintf("queue:%s:msg:", m.queueName))
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var stored storedMessage
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &stored)
			}); err != nil {
				return err
			}
			if stored.EnqueuedAt.Before(cutoff) {
				expired = append(expired, stored.ID)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan queue messages: %w", err)
	}

	// Receive heals orphaned index entries lazily, but only the ones dated
	// before its scan cutoff. The purge covers the rest. Keys under the
	// index prefix that fail to parse are junk and go the same way.
	var orphaned [][]byte
	err = m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte(fmt.Sprintf("queue:%s:index:", m.queueName))
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)

			_, id, err := m.parseIndexKey(key)
			if err != nil {
				orphaned = append(orphaned, key)
				continue
			}
			if _, err := txn.Get(m.msgKey(id)); err == badger.ErrKeyNotFound {
				orphaned = append(orphaned, key)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan queue index: %w", err)
	}

	purged := 0
	for _, id := range expired {
		if err := m.delete(id); err != nil {
			return purged, fmt.Errorf("failed to purge message %s: %w", id, err)
		}
		purged++
	}

	for _, key := range orphaned {
		err := m.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(key)
		})
		if err != nil {
			return purged, fmt.Errorf("failed to remove orphaned index entry: %w", err)
		}
	}

	return purged, nil
}

// Close is a no-op; the database is owned by the storage manager
func (m *BadgerManager) Close() error {
	return nil
}

// Helpers

func (m *BadgerManager) msgKey(id string) []byte {
	return []byte(fmt.Sprintf("queue:%s:msg:%s", m.queueName, id))
}

func (m *BadgerManager) indexKey(visibleAt time.Time, id string) []byte {
	// Zero pad to 20 digits so string ordering matches numeric ordering
	return []byte(fmt.Sprintf("queue:%s:index:%020d:%s", m.queueName, visibleAt.UnixNano(), id))
}

func (m *BadgerManager) parseIndexKey(key []byte) (time.Time, string, error) {
	prefixStr := fmt.Sprintf("queue:%s:index:", m.queueName)
	if len(key) <= len(prefixStr) {
		return time.Time{}, "", fmt.Errorf("invalid key length")
	}

	// Suffix is "{20-digit-ts}:{id}"
	suffix := string(key[len(prefixStr):])
	if len(suffix) < 22 {
		return time.Time{}, "", fmt.Errorf("invalid suffix length")
	}

	ts, err := strconv.ParseInt(suffix[:20], 10, 64)
	if err != nil {
		return time.Time{}, "", err
	}

	return time.Unix(0, ts), suffix[21:], nil
}
