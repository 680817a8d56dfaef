package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product 商品目录条目。价格、名称由目录维护；下单扣库存只走 inventory.Ledger。
type Product struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name        string          `gorm:"size:200;not null;index" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	// StockQuantity 永远 >= 0，扣减走条件 UPDATE。
	StockQuantity int64  `gorm:"not null;default:0" json:"stock_quantity"`
	Category      string `gorm:"size:100;index" json:"category"`
	ImageURL      string `gorm:"size:500" json:"image_url"`
	IsActive      bool   `gorm:"not null" json:"is_active"`
}

func (Product) TableName() string { return "products" }

// InStock 与下单时的校验口径一致：上架且库存足够。
func (p Product) InStock(quantity int64) bool {
	return p.IsActive && p.StockQuantity >= quantity
}
