package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"shop/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 订单状态机：只允许这些前进方向，取消只能发生在 pending。
var statusTransitions = map[string][]string{
	model.OrderPending:    {model.OrderProcessing, model.OrderCancelled},
	model.OrderProcessing: {model.OrderShipped},
	model.OrderShipped:    {model.OrderDelivered},
}

var paymentTransitions = map[string][]string{
	model.PaymentPending: {model.PaymentCompleted, model.PaymentFailed},
}

func newestFirst(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Order("created_at DESC").Order("id DESC")
}

// ListByUser 返回用户全部订单，最新的在前。
func (e *Engine) ListByUser(ctx context.Context, userID uint) ([]model.Order, error) {
	var orders []model.Order
	if err := newestFirst(e.db.WithContext(ctx)).Where("user_id = ?", userID).Find(&orders).Error; err != nil {
		return nil, model.StorageError("list user orders", err)
	}
	return orders, nil
}

func (e *Engine) ListAll(ctx context.Context) ([]model.Order, error) {
	var orders []model.Order
	if err := newestFirst(e.db.WithContext(ctx)).Find(&orders).Error; err != nil {
		return nil, model.StorageError("list orders", err)
	}
	return orders, nil
}

func (e *Engine) Get(ctx context.Context, orderNumber string) (*model.Order, error) {
	var o model.Order
	err := e.db.WithContext(ctx).Preload("Items").Where("order_number = ?", orderNumber).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrOrderNotFound
	}
	if err != nil {
		return nil, model.StorageError("get order", err)
	}
	return &o, nil
}

// UpdateStatus 推进订单状态和/或支付状态；空字符串表示不修改该字段，与当前值相同视为无操作。
// 转为 cancelled 时在同一事务内把每一行数量加回库存。
func (e *Engine) UpdateStatus(ctx context.Context, orderID uint, status, paymentStatus string) (*model.Order, error) {
	if status == "" && paymentStatus == "" {
		return nil, fmt.Errorf("%w: status or payment_status required", model.ErrInvalidInput)
	}

	var updated model.Order
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o model.Order
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Preload("Items").First(&o, orderID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.ErrOrderNotFound
		}
		if err != nil {
			return model.StorageError("load order", err)
		}

		changes := map[string]any{}
		if status != "" && status != o.Status {
			if !slices.Contains(statusTransitions[o.Status], status) {
				return fmt.Errorf("%w: %s -> %s", model.ErrInvalidStatusTransition, o.Status, status)
			}
			changes["status"] = status
		}
		if paymentStatus != "" && paymentStatus != o.PaymentStatus {
			if !slices.Contains(paymentTransitions[o.PaymentStatus], paymentStatus) {
				return fmt.Errorf("%w: payment %s -> %s", model.ErrInvalidStatusTransition, o.PaymentStatus, paymentStatus)
			}
			changes["payment_status"] = paymentStatus
		}
		if len(changes) == 0 {
			updated = o
			return nil
		}

		if changes["status"] == model.OrderCancelled {
			for _, it := range o.Items {
				if err := e.ledger.Increment(ctx, tx, it.ProductID, it.Quantity); err != nil {
					return err
				}
			}
		}

		if err := tx.Model(&model.Order{}).Where("id = ?", o.ID).Updates(changes).Error; err != nil {
			return model.StorageError("update order status", err)
		}
		if v, ok := changes["status"].(string); ok {
			o.Status = v
		}
		if v, ok := changes["payment_status"].(string); ok {
			o.PaymentStatus = v
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.InfoContext(ctx, "order status updated",
		slog.String("order_number", updated.OrderNumber),
		slog.String("status", updated.Status),
		slog.String("payment_status", updated.PaymentStatus))
	return &updated, nil
}

// Stats 管理后台汇总。revenue 不计已取消的订单。
type Stats struct {
	TotalUsers    int64           `json:"total_users"`
	TotalProducts int64           `json:"total_products"`
	TotalOrders   int64           `json:"total_orders"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
}

func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	db := e.db.WithContext(ctx)
	var s Stats
	if err := db.Model(&model.User{}).Count(&s.TotalUsers).Error; err != nil {
		return nil, model.StorageError("count users", err)
	}
	if err := db.Model(&model.Product{}).Count(&s.TotalProducts).Error; err != nil {
		return nil, model.StorageError("count products", err)
	}
	if err := db.Model(&model.Order{}).Count(&s.TotalOrders).Error; err != nil {
		return nil, model.StorageError("count orders", err)
	}

	var revenue decimal.NullDecimal
	row := db.Model(&model.Order{}).
		Select("SUM(total_amount)").
		Where("status <> ?", model.OrderCancelled).
		Row()
	if err := row.Scan(&revenue); err != nil {
		return nil, model.StorageError("sum revenue", err)
	}
	s.TotalRevenue = decimal.Zero
	if revenue.Valid {
		s.TotalRevenue = revenue.Decimal
	}
	return &s, nil
}
