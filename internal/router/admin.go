package router

import (
	"log/slog"
	"net/http"

	"shop/internal/catalog"
	"shop/internal/model"
	"shop/internal/order"
	"shop/internal/user"
	rediskey "shop/pkg/redis"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
)

func listUsers(svc *user.Service, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := svc.List(c.Request.Context())
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": users})
	}
}

func listAllOrders(engine *order.Engine, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := engine.ListAll(c.Request.Context())
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": orders})
	}
}

// updateOrderStatus 两个字段至少给一个；取消订单会回补库存。
func updateOrderStatus(engine *order.Engine, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uintParam(c, "id")
		if !ok {
			return
		}
		var req struct {
			Status        string `json:"status"`
			PaymentStatus string `json:"payment_status"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		o, err := engine.UpdateStatus(c.Request.Context(), id, req.Status, req.PaymentStatus)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": o})
	}
}

func stats(engine *order.Engine, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := engine.Stats(c.Request.Context())
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": s})
	}
}

// sales Kafka 消费端聚合到 Redis 的销售统计。
func sales(rdb *rd.Client, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"code": http.StatusServiceUnavailable, "msg": "sales aggregation is not enabled"})
			return
		}
		summary, err := rediskey.GetSalesSummary(c.Request.Context(), rdb)
		if err != nil {
			writeError(c, log, model.StorageError("sales summary", err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": summary})
	}
}

func listAllProducts(svc *catalog.Service, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.ListAll(c.Request.Context())
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": list})
	}
}

func createProduct(svc *catalog.Service, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in catalog.ProductInput
		if err := c.ShouldBindJSON(&in); err != nil {
			badRequest(c, err.Error())
			return
		}
		p, err := svc.Create(c.Request.Context(), in)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"code": 0, "data": p})
	}
}

func updateProduct(svc *catalog.Service, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uintParam(c, "id")
		if !ok {
			return
		}
		var patch catalog.ProductPatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			badRequest(c, err.Error())
			return
		}
		p, err := svc.Update(c.Request.Context(), id, patch)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": p})
	}
}

func deleteProduct(svc *catalog.Service, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uintParam(c, "id")
		if !ok {
			return
		}
		if err := svc.Delete(c.Request.Context(), id); err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "msg": "product deleted"})
	}
}
