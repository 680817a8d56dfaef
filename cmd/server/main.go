package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"shop/internal/cart"
	"shop/internal/catalog"
	"shop/internal/config"
	"shop/internal/inventory"
	"shop/internal/middleware"
	"shop/internal/observability"
	"shop/internal/order"
	"shop/internal/queue"
	"shop/internal/router"
	"shop/internal/storage"
	"shop/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	rd "github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := observability.NewLogger(os.Stdout, cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg config.AppConfig, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. 数据库，自动建表
	dsn := cfg.DBDSN
	if cfg.DBDriver == storage.DriverSQLite {
		dsn = storage.SQLiteDSN(cfg.DBDSN)
	}
	db, err := storage.Open(cfg.DBDriver, dsn, log)
	if err != nil {
		return err
	}
	if err := storage.Migrate(db); err != nil {
		return err
	}

	// 2. 指标注册到独立的 registry
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	// 3. Redis 可选：限流、下单锁、事件管道
	var rdb *rd.Client
	if cfg.RedisAddr != "" {
		rdb = rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Warn("redis unreachable, degrading", slog.String("addr", cfg.RedisAddr), slog.String("error", err.Error()))
		}
		cancel()
	}

	// 4. 业务服务
	ledger := inventory.NewLedger()
	tokens := user.NewTokens(cfg.JWTSecret, cfg.JWTTTL)
	engineOpts := []order.Option{order.WithMaxAttempts(cfg.OrderNumberMaxAttempts)}

	var workers sync.WaitGroup
	if cfg.EventsEnabled && rdb != nil {
		engineOpts = append(engineOpts, order.WithEventSink(queue.NewStreamPublisher(rdb, cfg.OrderEventStream)))

		producer := queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		relay := queue.NewRelay(rdb, producer, log, cfg.OrderEventStream, cfg.OrderEventGroup, cfg.OrderEventConsumer)

		consumer := queue.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, queue.NewRedisSalesRecorder(rdb), log)
		defer consumer.Close()

		workers.Add(2)
		go func() { defer workers.Done(); relay.Run(ctx) }()
		go func() { defer workers.Done(); consumer.Run(ctx) }()
		log.Info("order event pipeline started", slog.String("stream", cfg.OrderEventStream), slog.String("topic", cfg.KafkaTopic))
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))
	router.Setup(r, router.Deps{
		Carts:           cart.NewStore(db, log, metrics),
		Orders:          order.NewEngine(db, ledger, log, metrics, engineOpts...),
		Catalog:         catalog.NewService(db, log),
		Users:           user.NewService(db, tokens, log, metrics),
		Tokens:          tokens,
		Redis:           rdb,
		Gatherer:        reg,
		Log:             log,
		RateLimit:       cfg.RateLimit,
		RateWindow:      cfg.RateWindow,
		CheckoutLockTTL: cfg.CheckoutLockTTL,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", slog.String("addr", cfg.HTTPAddr), slog.String("db_driver", cfg.DBDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			stop()
			workers.Wait()
			return err
		}
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", slog.String("error", err.Error()))
	}
	workers.Wait()

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	return nil
}
