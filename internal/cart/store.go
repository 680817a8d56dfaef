// Package cart 维护每个用户唯一的购物车。
package cart

import (
	"context"
	"errors"
	"log/slog"

	"shop/internal/model"
	"shop/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store 购物车存储。加购时的库存检查只是提前拦截，不预占库存；
// 真正的扣减在下单事务里由 inventory.Ledger 完成。
type Store struct {
	db      *gorm.DB
	log     *slog.Logger
	metrics *observability.Metrics
}

func NewStore(db *gorm.DB, log *slog.Logger, metrics *observability.Metrics) *Store {
	return &Store{db: db, log: log, metrics: metrics}
}

// GetOrCreate 返回用户的购物车，不存在时创建空车。
func (s *Store) GetOrCreate(ctx context.Context, userID uint) (*model.Cart, error) {
	c, err := Load(ctx, s.db, userID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.StorageError("load cart", err)
	}

	// 并发首次访问时靠 user_id 唯一索引兜底，冲突即说明别的请求已建好。
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&model.Cart{UserID: userID})
	if res.Error != nil {
		return nil, model.StorageError("create cart", res.Error)
	}
	if res.RowsAffected == 1 {
		s.log.InfoContext(ctx, "cart created", slog.Uint64("user_id", uint64(userID)))
	}

	c, err = Load(ctx, s.db, userID)
	if err != nil {
		return nil, model.StorageError("load cart", err)
	}
	return c, nil
}

// Get 即 get_cart。
func (s *Store) Get(ctx context.Context, userID uint) (*model.Cart, error) {
	return s.GetOrCreate(ctx, userID)
}

// AddItem 加购：数量必须为正，商品必须存在、上架，且「已有数量 + 新数量」不超过当前库存。
// 已在车内的商品只累加数量，不新增行。
func (s *Store) AddItem(ctx context.Context, userID, productID uint, quantity int64) (*model.Cart, error) {
	if quantity <= 0 {
		s.log.WarnContext(ctx, "add to cart rejected",
			slog.Uint64("user_id", uint64(userID)), slog.Int64("quantity", quantity), slog.String("reason", "invalid_quantity"))
		return nil, model.ErrInvalidQuantity
	}

	c, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	var newQuantity int64
	var productName string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockCart(tx, c.ID); err != nil {
			return err
		}

		var p model.Product
		if err := tx.First(&p, productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return model.ErrProductNotFound
			}
			return model.StorageError("load product", err)
		}
		productName = p.Name

		var items []model.CartItem
		if err := tx.Where("cart_id = ? AND product_id = ?", c.ID, productID).Limit(1).Find(&items).Error; err != nil {
			return model.StorageError("load cart item", err)
		}

		newQuantity = quantity
		if len(items) == 1 {
			newQuantity += items[0].Quantity
		}
		if !p.InStock(newQuantity) {
			available := p.StockQuantity
			if !p.IsActive {
				available = 0
			}
			return &model.InsufficientStockError{
				ProductID:   p.ID,
				ProductName: p.Name,
				Requested:   newQuantity,
				Available:   available,
			}
		}

		if len(items) == 1 {
			if err := tx.Model(&items[0]).Update("quantity", newQuantity).Error; err != nil {
				return model.StorageError("update cart item", err)
			}
			return nil
		}
		if err := tx.Create(&model.CartItem{CartID: c.ID, ProductID: productID, Quantity: quantity}).Error; err != nil {
			return model.StorageError("create cart item", err)
		}
		return nil
	})
	if err != nil {
		s.log.WarnContext(ctx, "add to cart failed",
			slog.Uint64("user_id", uint64(userID)), slog.Uint64("product_id", uint64(productID)), slog.String("error", err.Error()))
		return nil, err
	}

	s.metrics.CartAdditions.Inc()
	s.log.InfoContext(ctx, "cart item added",
		slog.Uint64("user_id", uint64(userID)),
		slog.Uint64("product_id", uint64(productID)),
		slog.String("product_name", productName),
		slog.Int64("quantity", newQuantity))

	return s.reload(ctx, userID)
}

// RemoveItem 删除一整行；不在车内返回 ErrItemNotInCart。
func (s *Store) RemoveItem(ctx context.Context, userID, productID uint) (*model.Cart, error) {
	c, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockCart(tx, c.ID); err != nil {
			return err
		}
		res := tx.Where("cart_id = ? AND product_id = ?", c.ID, productID).Delete(&model.CartItem{})
		if res.Error != nil {
			return model.StorageError("delete cart item", res.Error)
		}
		if res.RowsAffected == 0 {
			return model.ErrItemNotInCart
		}
		return nil
	})
	if err != nil {
		s.log.WarnContext(ctx, "remove from cart failed",
			slog.Uint64("user_id", uint64(userID)), slog.Uint64("product_id", uint64(productID)), slog.String("error", err.Error()))
		return nil, err
	}

	s.log.InfoContext(ctx, "cart item removed",
		slog.Uint64("user_id", uint64(userID)), slog.Uint64("product_id", uint64(productID)))
	return s.reload(ctx, userID)
}

// lockCart 对购物车行加写锁。所有修改明细的事务和下单事务都先拿这把锁，
// 下单读到的明细在提交前不会被并发加购/删除改动。
func lockCart(tx *gorm.DB, cartID uint) error {
	var c model.Cart
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&c, cartID).Error; err != nil {
		return model.StorageError("lock cart", err)
	}
	return nil
}

func (s *Store) reload(ctx context.Context, userID uint) (*model.Cart, error) {
	c, err := Load(ctx, s.db, userID)
	if err != nil {
		return nil, model.StorageError("load cart", err)
	}
	return c, nil
}

// Load 读取购物车及明细（按商品 ID 排序，商品信息含已软删除的）。
// 找不到时返回 gorm.ErrRecordNotFound，db 可以是事务。
func Load(ctx context.Context, db *gorm.DB, userID uint) (*model.Cart, error) {
	var c model.Cart
	err := db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("product_id ASC") }).
		Preload("Items.Product", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Where("user_id = ?", userID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}
