// Package order 把购物车原子地转换为订单：扣库存、价格快照、生成订单号、清空购物车，
// 要么全部生效，要么全部回滚。
package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"shop/internal/inventory"
	"shop/internal/model"
	"shop/internal/observability"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultMaxAttempts = 5

// NumberSource 订单号来源，测试里可以替换成固定序列。
type NumberSource interface {
	Next() (string, error)
}

// EventSink 在订单提交之后接收通知（Redis Stream → Kafka）。
// 投递失败只记日志，不影响已提交的订单。
type EventSink interface {
	OrderCreated(ctx context.Context, o *model.Order) error
}

type Option func(*Engine)

func WithNumberSource(src NumberSource) Option { return func(e *Engine) { e.numbers = src } }

func WithEventSink(sink EventSink) Option { return func(e *Engine) { e.events = sink } }

// WithMaxAttempts 订单号冲突时整笔事务最多尝试的次数。
func WithMaxAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

type Engine struct {
	db          *gorm.DB
	ledger      *inventory.Ledger
	numbers     NumberSource
	events      EventSink
	log         *slog.Logger
	metrics     *observability.Metrics
	maxAttempts int
}

func NewEngine(db *gorm.DB, ledger *inventory.Ledger, log *slog.Logger, metrics *observability.Metrics, opts ...Option) *Engine {
	e := &Engine{
		db:          db,
		ledger:      ledger,
		numbers:     NewNumberGenerator(),
		log:         log,
		metrics:     metrics,
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateOrder 从用户购物车创建订单。
// 订单号撞上唯一索引时，用新订单号重跑整笔事务；其他错误直接返回，且不留下任何部分状态。
func (e *Engine) CreateOrder(ctx context.Context, userID uint, shippingAddress, paymentMethod string) (*model.Order, error) {
	if paymentMethod == "" {
		paymentMethod = model.DefaultPaymentMethod
	}

	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		number, err := e.numbers.Next()
		if err != nil {
			e.recordFailure(ctx, userID, err)
			return nil, err
		}

		o, err := e.createOnce(ctx, userID, number, shippingAddress, paymentMethod)
		if err == nil {
			e.afterCommit(ctx, o)
			return o, nil
		}
		if !errors.Is(err, model.ErrOrderNumberCollision) {
			e.recordFailure(ctx, userID, err)
			return nil, err
		}

		lastErr = err
		e.log.WarnContext(ctx, "order number collision, retrying",
			slog.Uint64("user_id", uint64(userID)),
			slog.String("order_number", number),
			slog.Int("attempt", attempt))
	}

	err := fmt.Errorf("create order after %d attempts: %w", e.maxAttempts, lastErr)
	e.recordFailure(ctx, userID, err)
	return nil, err
}

func (e *Engine) createOnce(ctx context.Context, userID uint, number, shippingAddress, paymentMethod string) (*model.Order, error) {
	var created *model.Order

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. 锁住购物车行后再读明细，整个事务内看到的是同一份明细。
		var c model.Cart
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(&c).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.ErrEmptyCart
		}
		if err != nil {
			return model.StorageError("lock cart", err)
		}

		// 按商品 ID 排序，多商品订单之间按同一顺序加行锁，避免死锁。
		var lines []model.CartItem
		if err := tx.Where("cart_id = ?", c.ID).Order("product_id ASC").Find(&lines).Error; err != nil {
			return model.StorageError("load cart items", err)
		}
		if len(lines) == 0 {
			return model.ErrEmptyCart
		}

		// 2. 以当前价格计算总额，同时准备快照。
		ids := make([]uint, 0, len(lines))
		for _, l := range lines {
			ids = append(ids, l.ProductID)
		}
		var products []model.Product
		if err := tx.Where("id IN ?", ids).Find(&products).Error; err != nil {
			return model.StorageError("load products", err)
		}
		byID := make(map[uint]model.Product, len(products))
		for _, p := range products {
			byID[p.ID] = p
		}

		total := decimal.Zero
		items := make([]model.OrderItem, 0, len(lines))
		for _, l := range lines {
			p, ok := byID[l.ProductID]
			if !ok {
				return fmt.Errorf("product %d: %w", l.ProductID, model.ErrProductNotFound)
			}
			subtotal := p.Price.Mul(decimal.NewFromInt(l.Quantity))
			total = total.Add(subtotal)
			items = append(items, model.OrderItem{
				ProductID:       p.ID,
				ProductName:     p.Name,
				Quantity:        l.Quantity,
				PriceAtPurchase: p.Price,
				Subtotal:        subtotal,
			})
		}

		// 3-4. 写订单头。
		o := &model.Order{
			OrderNumber:     number,
			UserID:          userID,
			Status:          model.OrderPending,
			TotalAmount:     total,
			ShippingAddress: shippingAddress,
			PaymentMethod:   paymentMethod,
			PaymentStatus:   model.PaymentPending,
		}
		if err := tx.Create(o).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s", model.ErrOrderNumberCollision, number)
			}
			return model.StorageError("create order", err)
		}

		// 5. 逐行扣库存，任何一行失败整笔回滚，之前成功的扣减也随事务撤销。
		for _, l := range lines {
			if err := e.ledger.TryDecrement(ctx, tx, l.ProductID, l.Quantity); err != nil {
				return err
			}
		}

		// 6. 明细快照。
		for i := range items {
			items[i].OrderID = o.ID
		}
		if err := tx.Create(&items).Error; err != nil {
			return model.StorageError("create order items", err)
		}

		// 7. 只删除本次读到并下单的明细，购物车本身保留。
		lineIDs := make([]uint, 0, len(lines))
		for _, l := range lines {
			lineIDs = append(lineIDs, l.ID)
		}
		if err := tx.Delete(&model.CartItem{}, lineIDs).Error; err != nil {
			return model.StorageError("clear cart", err)
		}

		o.Items = items
		created = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (e *Engine) afterCommit(ctx context.Context, o *model.Order) {
	e.metrics.OrdersCreated.Inc()
	e.metrics.OrderValue.Observe(o.TotalAmount.InexactFloat64())
	e.log.InfoContext(ctx, "order created",
		slog.String("order_number", o.OrderNumber),
		slog.Uint64("user_id", uint64(o.UserID)),
		slog.String("total_amount", o.TotalAmount.StringFixed(2)),
		slog.Int("items", len(o.Items)))

	if e.events == nil {
		return
	}
	if err := e.events.OrderCreated(ctx, o); err != nil {
		e.log.ErrorContext(ctx, "publish order created event",
			slog.String("order_number", o.OrderNumber),
			slog.String("error", err.Error()))
	}
}

func (e *Engine) recordFailure(ctx context.Context, userID uint, err error) {
	reason := FailureReason(err)
	e.metrics.OrderFailures.WithLabelValues(reason).Inc()

	level := slog.LevelWarn
	if reason == "storage" || reason == "internal" || reason == "order_number_collision" {
		level = slog.LevelError
	}
	e.log.Log(ctx, level, "order failed",
		slog.Uint64("user_id", uint64(userID)),
		slog.String("reason", reason),
		slog.String("error", err.Error()))
}

// FailureReason 把错误归类为指标标签。
func FailureReason(err error) string {
	switch {
	case errors.Is(err, model.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, model.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, model.ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, model.ErrOrderNumberCollision):
		return "order_number_collision"
	case errors.Is(err, model.ErrStorage):
		return "storage"
	default:
		return "internal"
	}
}

// isUniqueViolation 优先使用 gorm 翻译后的错误，驱动未翻译时退回到字符串判断。
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "UNIQUE") || strings.Contains(s, "unique") || strings.Contains(s, "duplicate key")
}
