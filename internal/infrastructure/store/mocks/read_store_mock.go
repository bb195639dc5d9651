package mocks

import (
	"context"
	"sync"

	"github.com/example/transcribe-checkout/internal/infrastructure/store"
	"github.com/example/transcribe-checkout/internal/readmodel"
)

// MockOrderReadStore is an in-memory OrderReadStore with error injection.
type MockOrderReadStore struct {
	inner *store.ReadStore

	mu       sync.Mutex
	ReadErr  error
	WriteErr error
	Saved    int
	Updated  int
}

func NewMockOrderReadStore() *MockOrderReadStore {
	return &MockOrderReadStore{inner: store.NewReadStore()}
}

func (m *MockOrderReadStore) errs() (read, write error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ReadErr, m.WriteErr
}

func (m *MockOrderReadStore) SaveOrder(ctx context.Context, o *readmodel.OrderReadModel) error {
	if _, err := m.errs(); err != nil {
		return err
	}
	m.mu.Lock()
	m.Saved++
	m.mu.Unlock()
	return m.inner.SaveOrder(ctx, o)
}

func (m *MockOrderReadStore) GetOrder(ctx context.Context, id string) (*readmodel.OrderReadModel, error) {
	if err, _ := m.errs(); err != nil {
		return nil, err
	}
	return m.inner.GetOrder(ctx, id)
}

func (m *MockOrderReadStore) ListOrdersByUser(ctx context.Context, userID string) ([]*readmodel.OrderReadModel, error) {
	if err, _ := m.errs(); err != nil {
		return nil, err
	}
	return m.inner.ListOrdersByUser(ctx, userID)
}

func (m *MockOrderReadStore) ListOrders(ctx context.Context) ([]*readmodel.OrderReadModel, error) {
	if err, _ := m.errs(); err != nil {
		return nil, err
	}
	return m.inner.ListOrders(ctx)
}

func (m *MockOrderReadStore) UpdateOrder(ctx context.Context, id string, updateFn func(o *readmodel.OrderReadModel)) error {
	if _, err := m.errs(); err != nil {
		return err
	}
	m.mu.Lock()
	m.Updated++
	m.mu.Unlock()
	return m.inner.UpdateOrder(ctx, id, updateFn)
}

// SetOrder seeds an order directly for testing
func (m *MockOrderReadStore) SetOrder(o *readmodel.OrderReadModel) {
	_ = m.inner.SaveOrder(context.Background(), o)
}
