package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/girish1208dev/print-service/models"
	bolt "go.etcd.io/bbolt"
)

// Well-known local cache keys
const (
	CurrentOrderKey      = "current-order"
	OrderHistoryKey      = "order-history"
	CustomerInfoDraftKey = "customer-info-draft"
	ConfirmedOrdersKey   = "confirmed-orders"
)

// localBucket is the single namespace bucket inside the bolt file
var localBucket = []byte("local-cache")

// LocalStore is a durable string-keyed store holding JSON values
type LocalStore interface {
	// Get returns the value for key, or ok=false when absent
	Get(key string) (value []byte, ok bool, err error)

	// Set replaces the value for key (last write wins)
	Set(key string, value []byte) error

	// Update runs a read-modify-write on key. Concurrent updates of the same key are serialized.
	Update(key string, fn func(current []byte, ok bool) ([]byte, error)) error

	// Close releases the underlying resources
	Close() error
}

// BoltStore implements LocalStore on a bbolt file, durable across restarts
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (creating when needed) the bbolt file at path
func OpenBoltStore(path string) (*BoltStore, error) {
	if path == "" {
		return nil, errors.New("local cache path must not be blank")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create local cache directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 30 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open local cache: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(localBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create local cache bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Get returns a copy of the stored value
func (s *BoltStore) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(localBucket).Get([]byte(key)); v != nil {
			// bolt values are only valid inside the transaction
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to read local key %s: %w", key, err)
	}
	return value, value != nil, nil
}

// Set writes the value in its own transaction
func (s *BoltStore) Set(key string, value []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(localBucket).Put([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("failed to write local key %s: %w", key, err)
	}
	return nil
}

// Update runs fn inside one bolt write transaction. Bolt allows a single writer at a time.
func (s *BoltStore) Update(key string, fn func([]byte, bool) ([]byte, error)) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(localBucket)
		var current []byte
		if v := b.Get([]byte(key)); v != nil {
			current = append([]byte(nil), v...)
		}
		next, err := fn(current, current != nil)
		if err != nil {
			return err
		}
		if next == nil {
			return b.Delete([]byte(key))
		}
		return b.Put([]byte(key), next)
	})
	if err != nil {
		return fmt.Errorf("failed to update local key %s: %w", key, err)
	}
	return nil
}

// Close closes the bolt file
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// MemoryStore is a non-durable LocalStore used in tests and as a fallback
type MemoryStore struct {
	mu     sync.Mutex
	values map[string][]byte
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

func (s *MemoryStore) Get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return append([]byte(nil), v...), ok, nil
}

func (s *MemoryStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = append([]byte(nil), value...)
	return nil
}

func (s *MemoryStore) Update(key string, fn func([]byte, bool) ([]byte, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.values[key]
	next, err := fn(append([]byte(nil), current...), ok)
	if err != nil {
		return err
	}
	if next == nil {
		delete(s.values, key)
		return nil
	}
	s.values[key] = append([]byte(nil), next...)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// OrderCache gives typed access to the well-known local cache keys
type OrderCache struct {
	store        LocalStore
	historyLimit int
}

// NewOrderCache wraps a LocalStore. historyLimit bounds the number of confirmed
// orders kept in history; unconfirmed orders are never evicted.
func NewOrderCache(store LocalStore, historyLimit int) *OrderCache {
	return &OrderCache{store: store, historyLimit: historyLimit}
}

// CurrentOrder returns the most recently submitted order, if any
func (c *OrderCache) CurrentOrder() (*models.Order, error) {
	data, ok, err := c.store.Get(CurrentOrderKey)
	if err != nil || !ok {
		return nil, err
	}
	var order models.Order
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, fmt.Errorf("failed to decode current order: %w", err)
	}
	return &order, nil
}

// History returns the submitted orders, newest first
func (c *OrderCache) History() ([]models.Order, error) {
	data, ok, err := c.store.Get(OrderHistoryKey)
	if err != nil || !ok {
		return []models.Order{}, err
	}
	return decodeHistory(data)
}

// RecordSubmission stores the order as the current order and prepends it to history
func (c *OrderCache) RecordSubmission(order models.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to encode order: %w", err)
	}
	if err := c.store.Set(CurrentOrderKey, data); err != nil {
		return err
	}
	return c.prependHistory(order)
}

// FoldCurrentIntoHistory makes sure the current order also appears in history.
// Returns true when history changed.
func (c *OrderCache) FoldCurrentIntoHistory() (bool, error) {
	current, err := c.CurrentOrder()
	if err != nil || current == nil {
		return false, err
	}

	history, err := c.History()
	if err != nil {
		return false, err
	}
	for _, o := range history {
		if o.ID == current.ID {
			return false, nil
		}
	}
	return true, c.prependHistory(*current)
}

func (c *OrderCache) prependHistory(order models.Order) error {
	confirmed, err := c.Confirmed()
	if err != nil {
		return err
	}

	return c.store.Update(OrderHistoryKey, func(current []byte, ok bool) ([]byte, error) {
		history := []models.Order{}
		if ok {
			decoded, err := decodeHistory(current)
			if err != nil {
				return nil, err
			}
			history = decoded
		}
		history = append([]models.Order{order}, history...)
		history = trimHistory(history, c.historyLimit, confirmed)
		return json.Marshal(history)
	})
}

// trimHistory drops the oldest confirmed orders beyond limit
func trimHistory(history []models.Order, limit int, confirmed map[string]string) []models.Order {
	if limit <= 0 || len(history) <= limit {
		return history
	}
	excess := len(history) - limit
	kept := make([]models.Order, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		o := history[i]
		if excess > 0 && i > 0 {
			if _, ok := confirmed[o.ID]; ok {
				excess--
				continue
			}
		}
		kept = append(kept, o)
	}
	// kept was built oldest-first
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return kept
}

func decodeHistory(data []byte) ([]models.Order, error) {
	var history []models.Order
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("failed to decode order history: %w", err)
	}
	if history == nil {
		history = []models.Order{}
	}
	return history, nil
}

// Confirmed returns the ids known to be in the remote store, mapped to the content
// fingerprint that was confirmed
func (c *OrderCache) Confirmed() (map[string]string, error) {
	data, ok, err := c.store.Get(ConfirmedOrdersKey)
	if err != nil {
		return nil, err
	}
	confirmed := map[string]string{}
	if !ok {
		return confirmed, nil
	}
	if err := json.Unmarshal(data, &confirmed); err != nil {
		return nil, fmt.Errorf("failed to decode confirmed orders: %w", err)
	}
	return confirmed, nil
}

// MarkConfirmed records that the order with this fingerprint is present remotely
func (c *OrderCache) MarkConfirmed(orderID, fingerprint string) error {
	return c.store.Update(ConfirmedOrdersKey, func(current []byte, ok bool) ([]byte, error) {
		confirmed := map[string]string{}
		if ok {
			if err := json.Unmarshal(current, &confirmed); err != nil {
				return nil, fmt.Errorf("failed to decode confirmed orders: %w", err)
			}
		}
		confirmed[orderID] = fingerprint
		return json.Marshal(confirmed)
	})
}

// CustomerDraft returns the saved customer info, or an empty value
func (c *OrderCache) CustomerDraft() (models.CustomerInfo, error) {
	var info models.CustomerInfo
	data, ok, err := c.store.Get(CustomerInfoDraftKey)
	if err != nil || !ok {
		return info, err
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return info, fmt.Errorf("failed to decode customer info draft: %w", err)
	}
	return info, nil
}

// SaveCustomerDraft stores the customer info so it survives reloads
func (c *OrderCache) SaveCustomerDraft(info models.CustomerInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to encode customer info draft: %w", err)
	}
	return c.store.Set(CustomerInfoDraftKey, data)
}
