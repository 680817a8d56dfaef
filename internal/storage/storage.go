// Package storage 负责打开 gorm 连接并建表，cmd 与测试共用。
package storage

import (
	"fmt"
	"log/slog"
	"time"

	"shop/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open 按驱动名打开数据库。
// TranslateError 打开后，唯一约束冲突统一翻译为 gorm.ErrDuplicatedKey，订单号重试依赖这一点。
func Open(driver, dsn string, log *slog.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         newGormLogger(log),
	})
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("db handle: %w", err)
	}
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	if driver == DriverPostgres {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
	}
	return db, nil
}

// Migrate 自动建表。
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.User{},
		&model.Product{},
		&model.Cart{},
		&model.CartItem{},
		&model.Order{},
		&model.OrderItem{},
	); err != nil {
		return fmt.Errorf("db migrate: %w", err)
	}
	return nil
}

// SQLiteDSN 拼出适合并发写的 sqlite DSN：
// _txlock=immediate 让写事务在 BEGIN 时就拿写锁，购物车读取和扣库存在同一把锁下完成；
// _busy_timeout 让并发事务排队等待而不是直接报 database is locked。
func SQLiteDSN(path string) string {
	return fmt.Sprintf("file:%s?_busy_timeout=10000&_txlock=immediate&_foreign_keys=on", path)
}

func newGormLogger(log *slog.Logger) logger.Interface {
	if log == nil {
		return logger.Default.LogMode(logger.Silent)
	}
	return logger.New(slogWriter{log: log}, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

// slogWriter 让 gorm 的慢查询、错误日志也走注入的 slog。
type slogWriter struct {
	log *slog.Logger
}

func (w slogWriter) Printf(format string, args ...interface{}) {
	w.log.Warn(fmt.Sprintf(format, args...), slog.String("component", "gorm"))
}
