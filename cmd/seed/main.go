package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"

	"shop/internal/catalog"
	"shop/internal/config"
	"shop/internal/model"
	"shop/internal/observability"
	"shop/internal/storage"
	"shop/internal/user"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// 初始数据：管理员账号 + 示例商品。重复执行不会产生重复数据。
var sampleProducts = []catalog.ProductInput{
	{Name: "Wireless Mouse", Description: "2.4GHz ergonomic mouse", Price: decimal.RequireFromString("24.99"), StockQuantity: 150, Category: "Electronics"},
	{Name: "Mechanical Keyboard", Description: "Hot-swappable, brown switches", Price: decimal.RequireFromString("89.00"), StockQuantity: 60, Category: "Electronics"},
	{Name: "USB-C Cable", Description: "1m braided cable", Price: decimal.RequireFromString("9.50"), StockQuantity: 500, Category: "Accessories"},
	{Name: "Noise Cancelling Headphones", Description: "Over-ear, 30h battery", Price: decimal.RequireFromString("199.00"), StockQuantity: 25, Category: "Audio"},
	{Name: "Standing Desk", Description: "Electric, dual motor", Price: decimal.RequireFromString("449.00"), StockQuantity: 8, Category: "Furniture"},
	{Name: "Coffee Mug", Description: "350ml ceramic", Price: decimal.RequireFromString("12.00"), StockQuantity: 200, Category: "Kitchen"},
	{Name: "Limited Edition Console", Description: "Only one left", Price: decimal.RequireFromString("499.99"), StockQuantity: 1, Category: "Gaming"},
}

func main() {
	adminUser := flag.String("admin-user", "admin", "admin username")
	adminEmail := flag.String("admin-email", "admin@example.com", "admin email")
	adminPass := flag.String("admin-pass", "admin123", "admin password")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := observability.NewLogger(os.Stdout, cfg.LogLevel)
	ctx := context.Background()

	dsn := cfg.DBDSN
	if cfg.DBDriver == storage.DriverSQLite {
		dsn = storage.SQLiteDSN(cfg.DBDSN)
	}
	db, err := storage.Open(cfg.DBDriver, dsn, log)
	if err != nil {
		log.Error("open db", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := storage.Migrate(db); err != nil {
		log.Error("migrate", slog.String("error", err.Error()))
		os.Exit(1)
	}

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	users := user.NewService(db, user.NewTokens(cfg.JWTSecret, cfg.JWTTTL), log, metrics)
	_, err = users.Register(ctx, user.RegisterInput{
		Username: *adminUser,
		Email:    *adminEmail,
		Password: *adminPass,
		FullName: "Administrator",
		IsAdmin:  true,
	})
	switch {
	case errors.Is(err, model.ErrUserExists):
		log.Info("admin already exists", slog.String("username", *adminUser))
	case err != nil:
		log.Error("create admin", slog.String("error", err.Error()))
		os.Exit(1)
	}

	products := catalog.NewService(db, log)
	existing, err := products.ListAll(ctx)
	if err != nil {
		log.Error("list products", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if len(existing) > 0 {
		log.Info("catalog already seeded", slog.Int("products", len(existing)))
		return
	}
	for _, in := range sampleProducts {
		if _, err := products.Create(ctx, in); err != nil {
			log.Error("create product", slog.String("name", in.Name), slog.String("error", err.Error()))
			os.Exit(1)
		}
	}
	log.Info("seed complete", slog.Int("products", len(sampleProducts)))
}
