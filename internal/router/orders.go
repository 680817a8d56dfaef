package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"shop/internal/order"
	rediskey "shop/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"
)

// createOrder 把购物车转成订单。
// 配置了 Redis 时，同一用户同一时刻只放行一个下单请求；Redis 故障时降级放行，正确性由数据库事务保证。
func createOrder(engine *order.Engine, rdb *rd.Client, lockTTL time.Duration, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			UserID          uint   `json:"user_id" binding:"required"`
			ShippingAddress string `json:"shipping_address"`
			PaymentMethod   string `json:"payment_method"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		ctx := c.Request.Context()

		if rdb != nil {
			token := uuid.NewString()
			locked, err := rediskey.AcquireCheckoutLock(ctx, rdb, req.UserID, token, lockTTL)
			switch {
			case err != nil:
				log.WarnContext(ctx, "checkout lock unavailable", slog.String("error", err.Error()))
			case !locked:
				c.JSON(http.StatusConflict, gin.H{"code": http.StatusConflict, "msg": "an order for this user is already being processed"})
				return
			default:
				defer func() {
					// 请求 ctx 可能已取消，释放锁用独立的短超时。
					releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
					defer cancel()
					if err := rediskey.ReleaseCheckoutLockIfMatch(releaseCtx, rdb, req.UserID, token); err != nil {
						log.Warn("release checkout lock", slog.String("error", err.Error()))
					}
				}()
			}
		}

		o, err := engine.CreateOrder(ctx, req.UserID, req.ShippingAddress, req.PaymentMethod)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"code": 0, "data": o})
	}
}

func listUserOrders(engine *order.Engine, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := uintParam(c, "user_id")
		if !ok {
			return
		}
		orders, err := engine.ListByUser(c.Request.Context(), userID)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": orders})
	}
}

func getOrder(engine *order.Engine, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, err := engine.Get(c.Request.Context(), c.Param("order_number"))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": o})
	}
}
