package order

import (
	"context"
	"testing"

	"shop/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListByUser_NewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Book", "12.00", 10)

	var numbers []string
	for i := 0; i < 3; i++ {
		f.add(t, 5, p.ID, 1)
		o, err := f.engine.CreateOrder(ctx, 5, "addr", "")
		require.NoError(t, err)
		numbers = append(numbers, o.OrderNumber)
	}
	f.add(t, 6, p.ID, 1)
	_, err := f.engine.CreateOrder(ctx, 6, "addr", "")
	require.NoError(t, err)

	orders, err := f.engine.ListByUser(ctx, 5)
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, numbers[2], orders[0].OrderNumber)
	assert.Equal(t, numbers[0], orders[2].OrderNumber)
	for _, o := range orders {
		assert.Len(t, o.Items, 1)
	}

	all, err := f.engine.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	none, err := f.engine.ListByUser(ctx, 404)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGet_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Get(context.Background(), "ORD-00000000000000-00000000")
	assert.ErrorIs(t, err, model.ErrOrderNotFound)
}

func TestUpdateStatus_Lifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Chair", "45.00", 4)
	f.add(t, 1, p.ID, 2)
	o, err := f.engine.CreateOrder(ctx, 1, "addr", "")
	require.NoError(t, err)

	o, err = f.engine.UpdateStatus(ctx, o.ID, model.OrderProcessing, model.PaymentCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.OrderProcessing, o.Status)
	assert.Equal(t, model.PaymentCompleted, o.PaymentStatus)

	// 已在处理中的订单不能取消。
	_, err = f.engine.UpdateStatus(ctx, o.ID, model.OrderCancelled, "")
	assert.ErrorIs(t, err, model.ErrInvalidStatusTransition)

	_, err = f.engine.UpdateStatus(ctx, o.ID, model.OrderDelivered, "")
	assert.ErrorIs(t, err, model.ErrInvalidStatusTransition)

	_, err = f.engine.UpdateStatus(ctx, o.ID, model.OrderShipped, "")
	require.NoError(t, err)
	o, err = f.engine.UpdateStatus(ctx, o.ID, model.OrderDelivered, "")
	require.NoError(t, err)
	assert.Equal(t, model.OrderDelivered, o.Status)

	stored, err := f.engine.Get(ctx, o.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, model.OrderDelivered, stored.Status)
	assert.Equal(t, model.PaymentCompleted, stored.PaymentStatus)
	assert.Equal(t, int64(2), f.stock(t, p.ID))
}

func TestUpdateStatus_CancelRestocksOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, "A", "1.00", 5)
	b := f.product(t, "B", "2.00", 5)
	f.add(t, 1, a.ID, 2)
	f.add(t, 1, b.ID, 3)
	o, err := f.engine.CreateOrder(ctx, 1, "addr", "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), f.stock(t, a.ID))
	assert.Equal(t, int64(2), f.stock(t, b.ID))

	_, err = f.engine.UpdateStatus(ctx, o.ID, model.OrderCancelled, "")
	require.NoError(t, err)
	assert.Equal(t, int64(5), f.stock(t, a.ID))
	assert.Equal(t, int64(5), f.stock(t, b.ID))

	// 重复取消是无操作，不会再次回补。
	_, err = f.engine.UpdateStatus(ctx, o.ID, model.OrderCancelled, "")
	require.NoError(t, err)
	assert.Equal(t, int64(5), f.stock(t, a.ID))
}

func TestUpdateStatus_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.UpdateStatus(ctx, 1, "", "")
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = f.engine.UpdateStatus(ctx, 12345, model.OrderProcessing, "")
	assert.ErrorIs(t, err, model.ErrOrderNotFound)

	p := f.product(t, "A", "1.00", 5)
	f.add(t, 1, p.ID, 1)
	o, err := f.engine.CreateOrder(ctx, 1, "addr", "")
	require.NoError(t, err)

	_, err = f.engine.UpdateStatus(ctx, o.ID, "teleported", "")
	assert.ErrorIs(t, err, model.ErrInvalidStatusTransition)

	_, err = f.engine.UpdateStatus(ctx, o.ID, "", model.PaymentFailed)
	require.NoError(t, err)
	_, err = f.engine.UpdateStatus(ctx, o.ID, "", model.PaymentCompleted)
	assert.ErrorIs(t, err, model.ErrInvalidStatusTransition)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.engine.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, s.TotalOrders)
	assert.True(t, s.TotalRevenue.IsZero())

	require.NoError(t, f.db.Create(&model.User{Username: "amy", Email: "amy@example.com", PasswordHash: "x"}).Error)
	p := f.product(t, "A", "10.50", 10)

	f.add(t, 1, p.ID, 2)
	_, err = f.engine.CreateOrder(ctx, 1, "addr", "")
	require.NoError(t, err)
	f.add(t, 2, p.ID, 1)
	cancelled, err := f.engine.CreateOrder(ctx, 2, "addr", "")
	require.NoError(t, err)
	_, err = f.engine.UpdateStatus(ctx, cancelled.ID, model.OrderCancelled, "")
	require.NoError(t, err)

	s, err = f.engine.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.TotalUsers)
	assert.Equal(t, int64(1), s.TotalProducts)
	assert.Equal(t, int64(2), s.TotalOrders)
	assert.True(t, decimal.RequireFromString("21.00").Equal(s.TotalRevenue), s.TotalRevenue.String())
}
