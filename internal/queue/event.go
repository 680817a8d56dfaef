package queue

import (
	"fmt"
	"time"

	"shop/internal/model"

	"github.com/shopspring/decimal"
)

// OrderEvent 订单创建事件，经 Redis Stream 转发到 Kafka。
type OrderEvent struct {
	OrderNumber string          `json:"order_number"`
	UserID      uint            `json:"user_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	CreatedAt   time.Time       `json:"created_at"`
	Items       []EventItem     `json:"items"`
}

type EventItem struct {
	ProductID uint            `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

func NewOrderEvent(o *model.Order) OrderEvent {
	ev := OrderEvent{
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		TotalAmount: o.TotalAmount,
		CreatedAt:   o.CreatedAt,
		Items:       make([]EventItem, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		ev.Items = append(ev.Items, EventItem{ProductID: it.ProductID, Quantity: it.Quantity, Subtotal: it.Subtotal})
	}
	return ev
}

// Validate 做最小字段校验，防止消费者处理脏消息。
func (e OrderEvent) Validate() error {
	if e.OrderNumber == "" {
		return fmt.Errorf("order_number is required")
	}
	if e.UserID == 0 {
		return fmt.Errorf("user_id is required")
	}
	if len(e.Items) == 0 {
		return fmt.Errorf("items are required")
	}
	sum := decimal.Zero
	for _, it := range e.Items {
		if it.ProductID == 0 {
			return fmt.Errorf("item product_id is required")
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("item quantity must be > 0")
		}
		sum = sum.Add(it.Subtotal)
	}
	if !sum.Equal(e.TotalAmount) {
		return fmt.Errorf("total_amount %s does not match items %s", e.TotalAmount, sum)
	}
	return nil
}
