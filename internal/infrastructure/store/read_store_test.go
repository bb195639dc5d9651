package store

import (
	"context"
	"testing"
	"time"

	"github.com/example/transcribe-checkout/internal/readmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReadStore() *ReadStore {
	return NewReadStore()
}

// ============================================
// ReadStore Tests
// ============================================

func TestReadStore_SaveAndGet(t *testing.T) {
	rs := newTestReadStore()
	ctx := context.Background()
	o := &readmodel.OrderReadModel{ID: "ord-1", AddOns: []string{"rush"}, Status: "pending"}

	require.NoError(t, rs.SaveOrder(ctx, o))
	o.AddOns[0] = "mutated"

	got, err := rs.GetOrder(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"rush"}, got.AddOns)
}

func TestReadStore_GetMissing(t *testing.T) {
	_, err := newTestReadStore().GetOrder(context.Background(), "nope")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReadStore_ListNewestFirst(t *testing.T) {
	rs := newTestReadStore()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, rs.SaveOrder(ctx, &readmodel.OrderReadModel{ID: "a", UserID: "u1", CreatedAt: base}))
	require.NoError(t, rs.SaveOrder(ctx, &readmodel.OrderReadModel{ID: "b", UserID: "u1", CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, rs.SaveOrder(ctx, &readmodel.OrderReadModel{ID: "c", UserID: "u2", CreatedAt: base.Add(2 * time.Hour)}))

	all, err := rs.ListOrders(ctx)
	require.NoError(t, err)
	mine, err := rs.ListOrdersByUser(ctx, "u1")
	require.NoError(t, err)

	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID)
	require.Len(t, mine, 2)
	assert.Equal(t, "b", mine[0].ID)
	assert.Equal(t, "a", mine[1].ID)
}

func TestReadStore_UpdateOrder(t *testing.T) {
	rs := newTestReadStore()
	ctx := context.Background()
	require.NoError(t, rs.SaveOrder(ctx, &readmodel.OrderReadModel{ID: "ord-1", Status: "pending"}))

	err := rs.UpdateOrder(ctx, "ord-1", func(o *readmodel.OrderReadModel) { o.Status = "paid" })
	require.NoError(t, err)

	got, err := rs.GetOrder(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "paid", got.Status)
	assert.ErrorIs(t, rs.UpdateOrder(ctx, "missing", func(*readmodel.OrderReadModel) {}), ErrNotFound)
}
