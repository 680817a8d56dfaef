package router

import (
	"log/slog"
	"net/http"
	"time"

	"shop/internal/cart"
	"shop/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type cartItemView struct {
	ID        uint            `json:"id"`
	Product   model.Product   `json:"product"`
	Quantity  int64           `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Available bool            `json:"available"`
	AddedAt   time.Time       `json:"added_at"`
}

type cartView struct {
	ID        uint            `json:"id"`
	UserID    uint            `json:"user_id"`
	Items     []cartItemView  `json:"items"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int64           `json:"item_count"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// newCartView 合计与小计在序列化时现算。
func newCartView(c *model.Cart) cartView {
	v := cartView{
		ID:        c.ID,
		UserID:    c.UserID,
		Items:     make([]cartItemView, 0, len(c.Items)),
		Total:     c.Total(),
		ItemCount: c.ItemCount(),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	for _, it := range c.Items {
		v.Items = append(v.Items, cartItemView{
			ID:        it.ID,
			Product:   it.Product,
			Quantity:  it.Quantity,
			Subtotal:  it.Subtotal(),
			Available: it.Purchasable(),
			AddedAt:   it.AddedAt,
		})
	}
	return v
}

func getCart(store *cart.Store, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := uintParam(c, "user_id")
		if !ok {
			return
		}
		ct, err := store.Get(c.Request.Context(), userID)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": newCartView(ct)})
	}
}

// addToCart quantity 缺省为 1。
func addToCart(store *cart.Store, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := uintParam(c, "user_id")
		if !ok {
			return
		}
		var req struct {
			ProductID uint   `json:"product_id" binding:"required"`
			Quantity  *int64 `json:"quantity"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		qty := int64(1)
		if req.Quantity != nil {
			qty = *req.Quantity
		}

		ct, err := store.AddItem(c.Request.Context(), userID, req.ProductID, qty)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": newCartView(ct)})
	}
}

func removeFromCart(store *cart.Store, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := uintParam(c, "user_id")
		if !ok {
			return
		}
		productID, ok := uintParam(c, "product_id")
		if !ok {
			return
		}
		ct, err := store.RemoveItem(c.Request.Context(), userID, productID)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": newCartView(ct)})
	}
}
