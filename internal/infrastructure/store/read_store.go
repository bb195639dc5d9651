package store

import (
	"context"
	"sort"
	"sync"

	"github.com/example/transcribe-checkout/internal/readmodel"
)

// ReadStore is an in-memory OrderReadStore
type ReadStore struct {
	mu     sync.RWMutex
	orders map[string]*readmodel.OrderReadModel
}

func NewReadStore() *ReadStore {
	return &ReadStore{
		orders: make(map[string]*readmodel.OrderReadModel),
	}
}

func (rs *ReadStore) SaveOrder(ctx context.Context, o *readmodel.OrderReadModel) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.orders[o.ID] = o.Copy()
	return nil
}

func (rs *ReadStore) GetOrder(ctx context.Context, id string) (*readmodel.OrderReadModel, error) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	o, ok := rs.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return o.Copy(), nil
}

func (rs *ReadStore) ListOrdersByUser(ctx context.Context, userID string) ([]*readmodel.OrderReadModel, error) {
	return rs.list(func(o *readmodel.OrderReadModel) bool { return o.UserID == userID }), nil
}

func (rs *ReadStore) ListOrders(ctx context.Context) ([]*readmodel.OrderReadModel, error) {
	return rs.list(func(*readmodel.OrderReadModel) bool { return true }), nil
}

// list returns matching orders newest first.
func (rs *ReadStore) list(match func(*readmodel.OrderReadModel) bool) []*readmodel.OrderReadModel {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	out := make([]*readmodel.OrderReadModel, 0)
	for _, o := range rs.orders {
		if match(o) {
			out = append(out, o.Copy())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// UpdateOrder modifies a read model using an update function
func (rs *ReadStore) UpdateOrder(ctx context.Context, id string, updateFn func(o *readmodel.OrderReadModel)) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	current, ok := rs.orders[id]
	if !ok {
		return ErrNotFound
	}
	updated := current.Copy()
	updateFn(updated)
	rs.orders[id] = updated
	return nil
}
