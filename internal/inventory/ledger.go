// Package inventory 管理商品库存，保证 stock_quantity 永不为负。
package inventory

import (
	"context"
	"errors"

	"shop/internal/model"

	"gorm.io/gorm"
)

// Ledger 库存账本。所有方法接收 *gorm.DB，调用方可以传入自己的事务，
// 扣减与订单写入一起提交或一起回滚。
type Ledger struct{}

func NewLedger() *Ledger { return &Ledger{} }

// TryDecrement 原子「判断库存 ≥ 扣减量 → 扣减」。
// 与 Redis Lua 扣减同一思路，只是放进一条条件 UPDATE：
// 行锁持有到事务结束，并发事务不可能同时看到足够的库存。
// 影响行数为 0 时才回读库存，用于区分商品不存在和库存不足。
func (l *Ledger) TryDecrement(ctx context.Context, db *gorm.DB, productID uint, quantity int64) error {
	if quantity <= 0 {
		return model.ErrInvalidQuantity
	}

	res := db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ? AND is_active = ? AND stock_quantity >= ?", productID, true, quantity).
		Update("stock_quantity", gorm.Expr("stock_quantity - ?", quantity))
	if res.Error != nil {
		return model.StorageError("decrement stock", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var p model.Product
	if err := db.WithContext(ctx).Select("id", "name", "stock_quantity", "is_active").First(&p, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.ErrProductNotFound
		}
		return model.StorageError("load product", err)
	}
	available := p.StockQuantity
	if !p.IsActive {
		available = 0
	}
	return &model.InsufficientStockError{
		ProductID:   p.ID,
		ProductName: p.Name,
		Requested:   quantity,
		Available:   available,
	}
}

// Increment 无条件回补库存，供取消订单等流程使用。
func (l *Ledger) Increment(ctx context.Context, db *gorm.DB, productID uint, quantity int64) error {
	if quantity <= 0 {
		return model.ErrInvalidQuantity
	}
	// 已下架（软删除）的商品也要能回补，历史订单取消时依赖这一点。
	res := db.WithContext(ctx).
		Unscoped().
		Model(&model.Product{}).
		Where("id = ?", productID).
		Update("stock_quantity", gorm.Expr("stock_quantity + ?", quantity))
	if res.Error != nil {
		return model.StorageError("increment stock", res.Error)
	}
	if res.RowsAffected == 0 {
		return model.ErrProductNotFound
	}
	return nil
}

// Available 查询当前库存（仅用于展示，不能作为扣减依据）。
func (l *Ledger) Available(ctx context.Context, db *gorm.DB, productID uint) (int64, error) {
	var p model.Product
	if err := db.WithContext(ctx).Select("id", "stock_quantity").First(&p, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, model.ErrProductNotFound
		}
		return 0, model.StorageError("load product", err)
	}
	return p.StockQuantity, nil
}
