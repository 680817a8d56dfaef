package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart 每个用户唯一一个，首次访问时创建，下单后只清空明细、不删除。
type Cart struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID uint       `gorm:"not null;uniqueIndex" json:"user_id"`
	Items  []CartItem `gorm:"foreignKey:CartID" json:"items"`
}

func (Cart) TableName() string { return "carts" }

// CartItem 同一购物车内每个商品只有一行，(cart_id, product_id) 唯一。
type CartItem struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CartID    uint      `gorm:"not null;uniqueIndex:idx_cart_product" json:"cart_id"`
	ProductID uint      `gorm:"not null;uniqueIndex:idx_cart_product" json:"product_id"`
	Quantity  int64     `gorm:"not null;default:1" json:"quantity"`
	AddedAt   time.Time `gorm:"autoCreateTime" json:"added_at"`

	Product Product `gorm:"foreignKey:ProductID" json:"product"`
}

func (CartItem) TableName() string { return "cart_items" }

// Subtotal 按商品当前价格计算。
func (i CartItem) Subtotal() decimal.Decimal {
	return i.Product.Price.Mul(decimal.NewFromInt(i.Quantity))
}

// Purchasable 商品已下架或已删除的明细仍留在车里展示，但下单必然失败。
func (i CartItem) Purchasable() bool {
	return i.Product.IsActive && !i.Product.DeletedAt.Valid
}

// Total 每次调用都基于当前明细重新计算，不做缓存；不可购买的明细不计入。
func (c Cart) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range c.Items {
		if !it.Purchasable() {
			continue
		}
		sum = sum.Add(it.Subtotal())
	}
	return sum
}

// ItemCount 返回所有明细数量之和。
func (c Cart) ItemCount() int64 {
	var n int64
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}
