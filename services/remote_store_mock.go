package services

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/girish1208dev/print-service/models"
)

// ErrMockRemoteUnavailable is returned by MockOrderStore while failures are injected
var ErrMockRemoteUnavailable = errors.New("mock remote store unavailable")

// MockOrderStore is an in-memory RemoteOrderStore for testing.
// Failures can be injected to simulate an unreachable remote.
type MockOrderStore struct {
	mu          sync.Mutex
	records     map[string]models.OrderRecord
	insertFails int
	existsFails int
	insertCalls int
	existsCalls int
	feed        *MemoryFeed
}

// NewMockOrderStore creates an empty mock store
func NewMockOrderStore() *MockOrderStore {
	return &MockOrderStore{
		records: make(map[string]models.OrderRecord),
		feed:    NewMemoryFeed(),
	}
}

// SetAsMockForTesting sets this mock as the global remote store instance for testing
func (m *MockOrderStore) SetAsMockForTesting() {
	SetRemoteStore(m)
}

// FailNextInserts makes the next n inserts fail
func (m *MockOrderStore) FailNextInserts(n int) {
	m.mu.Lock()
	m.insertFails = n
	m.mu.Unlock()
}

// FailNextExists makes the next n existence checks fail
func (m *MockOrderStore) FailNextExists(n int) {
	m.mu.Lock()
	m.existsFails = n
	m.mu.Unlock()
}

// Seed stores a record directly, bypassing insert accounting
func (m *MockOrderStore) Seed(record models.OrderRecord) {
	m.mu.Lock()
	m.records[record.ID] = record
	m.mu.Unlock()
}

func (m *MockOrderStore) InsertIfAbsent(ctx context.Context, record models.OrderRecord) (InsertOutcome, error) {
	m.mu.Lock()
	m.insertCalls++
	if m.insertFails > 0 {
		m.insertFails--
		m.mu.Unlock()
		return 0, ErrMockRemoteUnavailable
	}
	if _, exists := m.records[record.ID]; exists {
		m.mu.Unlock()
		return AlreadyExists, nil
	}
	m.records[record.ID] = record
	m.mu.Unlock()

	_ = m.feed.Publish(ctx, record)
	return Inserted, nil
}

func (m *MockOrderStore) ExistsByID(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.existsCalls++
	if m.existsFails > 0 {
		m.existsFails--
		return false, ErrMockRemoteUnavailable
	}
	_, exists := m.records[id]
	return exists, nil
}

func (m *MockOrderStore) GetByID(_ context.Context, id string) (models.OrderRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, exists := m.records[id]
	if !exists {
		return record, ErrOrderNotFound
	}
	return record, nil
}

func (m *MockOrderStore) ListAll(_ context.Context) ([]models.OrderRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	records := make([]models.OrderRecord, 0, len(m.records))
	for _, r := range m.records {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].OrderDate > records[j].OrderDate
	})
	return records, nil
}

func (m *MockOrderStore) SubscribeToInserts(ctx context.Context) (<-chan models.OrderRecord, error) {
	return m.feed.Subscribe(ctx)
}

// Count returns the number of stored records
func (m *MockOrderStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// InsertCalls returns how many inserts were attempted
func (m *MockOrderStore) InsertCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertCalls
}

// ExistsCalls returns how many existence checks were made
func (m *MockOrderStore) ExistsCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.existsCalls
}
