package router

import (
	"log/slog"
	"net/http"
	"time"

	"shop/internal/cart"
	"shop/internal/catalog"
	"shop/internal/middleware"
	"shop/internal/order"
	"shop/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	rd "github.com/redis/go-redis/v9"
)

// Deps 路由依赖。Redis 为 nil 时跳过限流、下单锁，销售统计接口返回 503。
type Deps struct {
	Carts    *cart.Store
	Orders   *order.Engine
	Catalog  *catalog.Service
	Users    *user.Service
	Tokens   *user.Tokens
	Redis    *rd.Client
	Gatherer prometheus.Gatherer
	Log      *slog.Logger

	RateLimit       int
	RateWindow      time.Duration
	CheckoutLockTTL time.Duration
}

// Setup 注册全部 HTTP 路由。
func Setup(r *gin.Engine, d Deps) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "pong"})
	})
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")

	// Products
	api.GET("/products", listProducts(d.Catalog, d.Log))
	api.GET("/products/:id", getProduct(d.Catalog, d.Log))

	// Users
	api.POST("/users/register", register(d.Users, d.Log))
	api.POST("/users/login", login(d.Users, d.Log))
	api.GET("/users/:user_id", getUser(d.Users, d.Log))

	// Cart
	api.GET("/cart/:user_id", getCart(d.Carts, d.Log))
	api.POST("/cart/:user_id/add",
		middleware.RedisRateLimit(d.Redis, "cart", d.RateLimit, d.RateWindow, d.Log),
		addToCart(d.Carts, d.Log))
	api.DELETE("/cart/:user_id/remove/:product_id", removeFromCart(d.Carts, d.Log))

	// Orders
	api.POST("/orders",
		middleware.RedisRateLimit(d.Redis, "orders", d.RateLimit, d.RateWindow, d.Log),
		createOrder(d.Orders, d.Redis, d.CheckoutLockTTL, d.Log))
	api.GET("/orders/user/:user_id", listUserOrders(d.Orders, d.Log))
	api.GET("/orders/number/:order_number", getOrder(d.Orders, d.Log))

	// Admin
	admin := api.Group("/admin", middleware.RequireAdmin(d.Tokens))
	admin.GET("/users", listUsers(d.Users, d.Log))
	admin.GET("/orders", listAllOrders(d.Orders, d.Log))
	admin.PUT("/orders/:id/status", updateOrderStatus(d.Orders, d.Log))
	admin.GET("/stats", stats(d.Orders, d.Log))
	admin.GET("/sales", sales(d.Redis, d.Log))
	admin.GET("/products", listAllProducts(d.Catalog, d.Log))
	admin.POST("/products", createProduct(d.Catalog, d.Log))
	admin.PUT("/products/:id", updateProduct(d.Catalog, d.Log))
	admin.DELETE("/products/:id", deleteProduct(d.Catalog, d.Log))
}
