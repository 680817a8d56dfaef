package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 订单状态。status / payment_status 只由后台管理流程修改。
const (
	OrderPending    = "pending"
	OrderProcessing = "processing"
	OrderShipped    = "shipped"
	OrderDelivered  = "delivered"
	OrderCancelled  = "cancelled"

	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"

	DefaultPaymentMethod = "credit_card"
)

// Order 下单成功后生成，除 Status / PaymentStatus 外不可变。
type Order struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	OrderNumber     string          `gorm:"size:64;uniqueIndex;not null" json:"order_number"`
	UserID          uint            `gorm:"not null;index" json:"user_id"`
	Status          string          `gorm:"size:32;not null;default:pending" json:"status"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	ShippingAddress string          `gorm:"type:text" json:"shipping_address"`
	PaymentMethod   string          `gorm:"size:50" json:"payment_method"`
	PaymentStatus   string          `gorm:"size:32;not null;default:pending" json:"payment_status"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items"`
}

func (Order) TableName() string { return "orders" }

// OrderItem 是下单时刻的快照，与 products 行解耦：之后改价、改名都不影响历史订单。
type OrderItem struct {
	ID        uint `gorm:"primarykey" json:"id"`
	OrderID   uint `gorm:"not null;index" json:"order_id"`
	ProductID uint `gorm:"not null;index" json:"product_id"`

	ProductName     string          `gorm:"size:200;not null" json:"product_name"`
	Quantity        int64           `gorm:"not null" json:"quantity"`
	PriceAtPurchase decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price_at_purchase"`
	Subtotal        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
}

func (OrderItem) TableName() string { return "order_items" }

// ItemsTotal sums the line subtotals; equals TotalAmount for every order created by the engine.
func (o Order) ItemsTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.Subtotal)
	}
	return sum
}
