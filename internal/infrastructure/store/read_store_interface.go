package store

import (
	"context"
	"errors"

	"github.com/example/transcribe-checkout/internal/readmodel"
)

var ErrNotFound = errors.New("read model not found")

// OrderReadStore stores the order read model. GetOrder and UpdateOrder
// return ErrNotFound for unknown ids.
type OrderReadStore interface {
	SaveOrder(ctx context.Context, o *readmodel.OrderReadModel) error
	GetOrder(ctx context.Context, id string) (*readmodel.OrderReadModel, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]*readmodel.OrderReadModel, error)
	ListOrders(ctx context.Context) ([]*readmodel.OrderReadModel, error)
	UpdateOrder(ctx context.Context, id string, updateFn func(o *readmodel.OrderReadModel)) error
}
