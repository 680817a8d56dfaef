package inventory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"shop/internal/model"
	"shop/internal/storage/storagetest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func seedProduct(t *testing.T, db *gorm.DB, name string, stock int64, active bool) *model.Product {
	t.Helper()
	p := &model.Product{
		Name:          name,
		Price:         decimal.RequireFromString("9.99"),
		StockQuantity: stock,
		IsActive:      active,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func stockOf(t *testing.T, db *gorm.DB, id uint) int64 {
	t.Helper()
	var p model.Product
	require.NoError(t, db.Unscoped().First(&p, id).Error)
	return p.StockQuantity
}

func TestTryDecrement_SufficientStock(t *testing.T) {
	db := storagetest.New(t)
	l := NewLedger()
	p := seedProduct(t, db, "Mug", 5, true)

	require.NoError(t, l.TryDecrement(context.Background(), db, p.ID, 3))
	assert.Equal(t, int64(2), stockOf(t, db, p.ID))

	// 恰好用完也允许。
	require.NoError(t, l.TryDecrement(context.Background(), db, p.ID, 2))
	assert.Equal(t, int64(0), stockOf(t, db, p.ID))
}

func TestTryDecrement_InsufficientLeavesStockUnchanged(t *testing.T) {
	db := storagetest.New(t)
	l := NewLedger()
	p := seedProduct(t, db, "Mug", 2, true)

	err := l.TryDecrement(context.Background(), db, p.ID, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInsufficientStock)

	var stockErr *model.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, int64(2), stockErr.Available)
	assert.Equal(t, int64(3), stockErr.Requested)
	assert.Equal(t, "Mug", stockErr.ProductName)
	assert.Equal(t, int64(2), stockOf(t, db, p.ID))
}

func TestTryDecrement_InactiveProductReportsZeroAvailable(t *testing.T) {
	db := storagetest.New(t)
	l := NewLedger()
	p := seedProduct(t, db, "Retired", 10, false)

	err := l.TryDecrement(context.Background(), db, p.ID, 1)
	var stockErr *model.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, int64(0), stockErr.Available)
	assert.Equal(t, int64(10), stockOf(t, db, p.ID))
}

func TestTryDecrement_UnknownProductAndBadQuantity(t *testing.T) {
	db := storagetest.New(t)
	l := NewLedger()

	assert.ErrorIs(t, l.TryDecrement(context.Background(), db, 999, 1), model.ErrProductNotFound)
	assert.ErrorIs(t, l.TryDecrement(context.Background(), db, 1, 0), model.ErrInvalidQuantity)
	assert.ErrorIs(t, l.TryDecrement(context.Background(), db, 1, -4), model.ErrInvalidQuantity)
}

func TestTryDecrement_RolledBackWithTransaction(t *testing.T) {
	db := storagetest.New(t)
	l := NewLedger()
	p := seedProduct(t, db, "Mug", 5, true)

	boom := errors.New("later step failed")
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := l.TryDecrement(context.Background(), tx, p.ID, 4); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(5), stockOf(t, db, p.ID))
}

func TestTryDecrement_ConcurrentNeverOversells(t *testing.T) {
	db := storagetest.New(t)
	l := NewLedger()
	const initialStock = 5
	const workers = 20
	p := seedProduct(t, db, "Hot item", initialStock, true)

	var wg sync.WaitGroup
	var ok, insufficient atomic.Int32
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := db.Transaction(func(tx *gorm.DB) error {
				return l.TryDecrement(context.Background(), tx, p.ID, 1)
			})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, model.ErrInsufficientStock):
				insufficient.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(initialStock), ok.Load())
	assert.Equal(t, int32(workers-initialStock), insufficient.Load())
	assert.Equal(t, int64(0), stockOf(t, db, p.ID))
}

func TestIncrement(t *testing.T) {
	db := storagetest.New(t)
	l := NewLedger()
	p := seedProduct(t, db, "Mug", 1, true)

	require.NoError(t, l.Increment(context.Background(), db, p.ID, 4))
	assert.Equal(t, int64(5), stockOf(t, db, p.ID))

	// 软删除后仍可回补。
	require.NoError(t, db.Delete(&model.Product{}, p.ID).Error)
	require.NoError(t, l.Increment(context.Background(), db, p.ID, 1))
	assert.Equal(t, int64(6), stockOf(t, db, p.ID))

	assert.ErrorIs(t, l.Increment(context.Background(), db, 12345, 1), model.ErrProductNotFound)
	assert.ErrorIs(t, l.Increment(context.Background(), db, p.ID, 0), model.ErrInvalidQuantity)
}

func TestAvailable(t *testing.T) {
	db := storagetest.New(t)
	l := NewLedger()
	p := seedProduct(t, db, "Mug", 7, true)

	n, err := l.Available(context.Background(), db, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	_, err = l.Available(context.Background(), db, 404)
	assert.ErrorIs(t, err, model.ErrProductNotFound)
}

// postgres 方言下的 SQL 形状：扣减必须是一条带库存条件的 UPDATE，而不是先查后改。
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return db, mock
}

func TestTryDecrement_Postgres_SingleConditionalUpdate(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(`UPDATE "products" SET "stock_quantity"=stock_quantity - .+WHERE .*stock_quantity >= `).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewLedger().TryDecrement(context.Background(), db, 1, 2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTryDecrement_Postgres_ZeroRowsReadsAvailable(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(`UPDATE "products" SET "stock_quantity"=stock_quantity - `).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT "id","name","stock_quantity","is_active" FROM "products"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "stock_quantity", "is_active"}).AddRow(1, "Mug", 1, true))

	err := NewLedger().TryDecrement(context.Background(), db, 1, 2)
	var stockErr *model.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, int64(1), stockErr.Available)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTryDecrement_Postgres_StorageFailure(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(`UPDATE "products"`).WillReturnError(errors.New("connection reset by peer"))

	err := NewLedger().TryDecrement(context.Background(), db, 1, 1)
	assert.ErrorIs(t, err, model.ErrStorage)
	assert.NotErrorIs(t, err, model.ErrInsufficientStock)
	assert.NoError(t, mock.ExpectationsWereMet())
}
