package catalog

import (
	"context"
	"testing"

	"shop/internal/model"
	"shop/internal/observability"
	"shop/internal/storage/storagetest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) *Service {
	t.Helper()
	return NewService(storagetest.New(t), observability.Discard())
}

func ptr[T any](v T) *T { return &v }

func TestCreate_Validation(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   ProductInput
	}{
		{"short name", ProductInput{Name: "x", Price: decimal.RequireFromString("1")}},
		{"zero price", ProductInput{Name: "Pen", Price: decimal.Zero}},
		{"negative price", ProductInput{Name: "Pen", Price: decimal.RequireFromString("-1")}},
		{"negative stock", ProductInput{Name: "Pen", Price: decimal.RequireFromString("1"), StockQuantity: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Create(ctx, tc.in)
			assert.ErrorIs(t, err, model.ErrInvalidInput)
		})
	}
}

func TestCreateAndList(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	p, err := s.Create(ctx, ProductInput{Name: "  Keyboard ", Price: decimal.RequireFromString("49.999"), StockQuantity: 3, Category: "pc"})
	require.NoError(t, err)
	assert.Equal(t, "Keyboard", p.Name)
	assert.True(t, p.IsActive)
	assert.Equal(t, "50", p.Price.String())

	_, err = s.Create(ctx, ProductInput{Name: "Hidden", Price: decimal.RequireFromString("1"), StockQuantity: 0})
	require.NoError(t, err)

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.StockQuantity)

	list, err := s.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestUpdate(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	p, err := s.Create(ctx, ProductInput{Name: "Mug", Price: decimal.RequireFromString("5"), StockQuantity: 1})
	require.NoError(t, err)

	got, err := s.Update(ctx, p.ID, ProductPatch{
		Price:         ptr(decimal.RequireFromString("6.25")),
		StockQuantity: ptr(int64(40)),
		IsActive:      ptr(false),
	})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("6.25").Equal(got.Price))
	assert.Equal(t, int64(40), got.StockQuantity)
	assert.False(t, got.IsActive)
	assert.Equal(t, "Mug", got.Name)

	// 下架后前台不可见。
	_, err = s.Get(ctx, p.ID)
	assert.ErrorIs(t, err, model.ErrProductNotFound)
	active, err := s.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = s.Update(ctx, p.ID, ProductPatch{StockQuantity: ptr(int64(-5))})
	assert.ErrorIs(t, err, model.ErrInvalidInput)
	_, err = s.Update(ctx, 999, ProductPatch{Name: ptr("Nope")})
	assert.ErrorIs(t, err, model.ErrProductNotFound)
}

func TestDelete(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	p, err := s.Create(ctx, ProductInput{Name: "Lamp", Price: decimal.RequireFromString("20"), StockQuantity: 2})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, p.ID))
	_, err = s.Get(ctx, p.ID)
	assert.ErrorIs(t, err, model.ErrProductNotFound)
	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	assert.ErrorIs(t, s.Delete(ctx, p.ID), model.ErrProductNotFound)
}
