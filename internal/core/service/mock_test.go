package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/rl1809/pantry/internal/core/domain"
	"github.com/rl1809/pantry/internal/port"
)

// Mock InventoryStore
type mockStore struct {
	mu        sync.Mutex
	records   []domain.InventoryRecord
	failOn    map[string]error
	calls     []domain.Operation
	listErr   error
	nextID    int
	listCalls int
}

func newMockStore(records ...domain.InventoryRecord) *mockStore {
	return &mockStore{records: records, failOn: make(map[string]error)}
}

func (m *mockStore) List(ctx context.Context) ([]domain.InventoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]domain.InventoryRecord(nil), m.records...), nil
}

func (m *mockStore) Update(ctx context.Context, id string, patch domain.RecordPatch) (domain.InventoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, domain.Operation{Kind: domain.OpUpdate, RecordID: id, Patch: patch})
	if err := m.failOn[id]; err != nil {
		return domain.InventoryRecord{}, err
	}
	for i, r := range m.records {
		if r.ID == id {
			m.records[i] = r.Apply(patch)
			return m.records[i], nil
		}
	}
	return domain.InventoryRecord{}, domain.ErrNotFound
}

func (m *mockStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, domain.Operation{Kind: domain.OpDelete, RecordID: id})
	if err := m.failOn[id]; err != nil {
		return err
	}
	for i, r := range m.records {
		if r.ID == id {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *mockStore) Create(ctx context.Context, rec domain.NewRecord) (domain.InventoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	r := domain.InventoryRecord{
		ID:              fmt.Sprintf("new-%d", m.nextID),
		Name:            rec.Name,
		Category:        rec.Category,
		Quantity:        rec.Quantity,
		Unit:            rec.Unit,
		StorageLocation: rec.StorageLocation,
		ExpiryDate:      rec.ExpiryDate,
	}
	m.records = append(m.records, r)
	return r, nil
}

func (m *mockStore) opsFor(kind domain.OpKind) []domain.Operation {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ops []domain.Operation
	for _, op := range m.calls {
		if op.Kind == kind {
			ops = append(ops, op)
		}
	}
	return ops
}

// Mock StoreProvider
type mockProvider struct {
	store *mockStore
}

func (p mockProvider) StoreFor(session domain.Session) (port.InventoryStore, error) {
	if session.Anonymous() {
		return nil, domain.ErrUnauthenticated
	}
	return p.store, nil
}

// Mock CacheRepository
type mockCache struct {
	mu       sync.Mutex
	keys     map[string]bool
	outcomes map[string]domain.BatchResult
}

func newMockCache() *mockCache {
	return &mockCache{keys: make(map[string]bool), outcomes: make(map[string]domain.BatchResult)}
}

func (m *mockCache) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *mockCache) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

func (m *mockCache) SaveOutcome(ctx context.Context, key string, result domain.BatchResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[key] = result
	return nil
}

func (m *mockCache) LoadOutcome(ctx context.Context, key string) (domain.BatchResult, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.outcomes[key]
	return r, ok, nil
}

func record(id, name string, qty float64, unit domain.Unit, expiry string) domain.InventoryRecord {
	d, err := domain.ParseDate(expiry)
	if err != nil {
		panic(err)
	}
	return domain.InventoryRecord{
		ID:              id,
		Name:            name,
		Category:        domain.CategoryOther,
		Quantity:        qty,
		Unit:            unit,
		StorageLocation: "fridge",
		ExpiryDate:      d,
	}
}
