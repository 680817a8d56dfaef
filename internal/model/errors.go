package model

import (
	"errors"
	"fmt"
)

// 业务错误类型，统一用 errors.Is 判断；router 负责映射为 HTTP 状态码。
var (
	ErrInvalidQuantity         = errors.New("quantity must be at least 1")
	ErrProductNotFound         = errors.New("product not found")
	ErrInsufficientStock       = errors.New("insufficient stock")
	ErrItemNotInCart           = errors.New("item not in cart")
	ErrEmptyCart               = errors.New("cart is empty")
	ErrOrderNumberCollision    = errors.New("order number collision")
	ErrOrderNotFound           = errors.New("order not found")
	ErrInvalidStatusTransition = errors.New("invalid order status transition")

	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("username or email already registered")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidInput       = errors.New("invalid input")

	// ErrStorage 包装底层存储错误，对调用方只暴露为内部错误。
	ErrStorage = errors.New("storage unavailable")
)

// InsufficientStockError 携带可用库存，加购和下单两处都会返回。
type InsufficientStockError struct {
	ProductID   uint
	ProductName string
	Requested   int64
	Available   int64
}

func (e *InsufficientStockError) Error() string {
	if e.ProductName != "" {
		return fmt.Sprintf("insufficient stock for %q (requested: %d, available: %d)", e.ProductName, e.Requested, e.Available)
	}
	return fmt.Sprintf("insufficient stock for product %d (requested: %d, available: %d)", e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// StorageError 把驱动错误包装成 ErrStorage，同时保留原始错误链。
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}
