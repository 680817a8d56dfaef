package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig 聚合运行时配置，尽量通过环境变量注入，避免硬编码。
type AppConfig struct {
	HTTPAddr string

	// DB_DRIVER=sqlite 时 DB_DSN 为文件路径，postgres 时为连接串
	DBDriver string
	DBDSN    string

	// 为空时不启用限流、下单锁和事件管道
	RedisAddr string
	RedisDB   int

	// Kafka 集群地址（逗号分隔）、Topic、消费者组
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// Redis Stream outbox（下单后入流，Relay 异步转 Kafka）
	OrderEventStream   string
	OrderEventGroup    string
	OrderEventConsumer string
	EventsEnabled      bool

	// 加购、下单接口限流
	RateLimit  int
	RateWindow time.Duration

	// 同一用户下单锁的过期时间
	CheckoutLockTTL time.Duration

	// 订单号冲突时整笔事务最多尝试次数
	OrderNumberMaxAttempts int

	JWTSecret string
	JWTTTL    time.Duration

	LogLevel string
}

// Load 先加载可选的 .env，再读取并校验配置，缺失时使用默认值。
// 已存在的环境变量优先于 .env。
func Load() (AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return AppConfig{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv 只读取进程环境变量。
func FromEnv() (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		DBDriver:           getEnv("DB_DRIVER", "sqlite"),
		DBDSN:              getEnv("DB_DSN", "shop.db"),
		RedisAddr:          strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisDB:            0,
		KafkaBrokers:       splitCSV(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "shop-order-events"),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "shop-sales-aggregator"),
		OrderEventStream:   getEnv("ORDER_EVENT_STREAM", "shop:order_events"),
		OrderEventGroup:    getEnv("ORDER_EVENT_GROUP", "shop-relay-group"),
		OrderEventConsumer: getEnv("ORDER_EVENT_CONSUMER", "shop-relay-1"),
		RateLimit:          100,
		RateWindow:         time.Second,
		CheckoutLockTTL:    10 * time.Second,

		OrderNumberMaxAttempts: 5,

		JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTTTL:    24 * time.Hour,
		LogLevel:  getEnv("LOG_LEVEL", "info"),
	}

	if cfg.DBDriver != "sqlite" && cfg.DBDriver != "postgres" {
		return AppConfig{}, fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", cfg.DBDriver)
	}

	redisDB, err := getEnvInt("REDIS_DB", cfg.RedisDB)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.RedisDB = redisDB

	rateLimit, err := getEnvInt("RATE_LIMIT", cfg.RateLimit)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid RATE_LIMIT: %w", err)
	}
	if rateLimit <= 0 {
		return AppConfig{}, fmt.Errorf("RATE_LIMIT must be > 0")
	}
	cfg.RateLimit = rateLimit

	rateWindowSec, err := getEnvInt("RATE_WINDOW_SEC", int(cfg.RateWindow.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid RATE_WINDOW_SEC: %w", err)
	}
	if rateWindowSec <= 0 {
		return AppConfig{}, fmt.Errorf("RATE_WINDOW_SEC must be > 0")
	}
	cfg.RateWindow = time.Duration(rateWindowSec) * time.Second

	lockTTLSec, err := getEnvInt("CHECKOUT_LOCK_TTL_SEC", int(cfg.CheckoutLockTTL.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid CHECKOUT_LOCK_TTL_SEC: %w", err)
	}
	if lockTTLSec <= 0 {
		return AppConfig{}, fmt.Errorf("CHECKOUT_LOCK_TTL_SEC must be > 0")
	}
	cfg.CheckoutLockTTL = time.Duration(lockTTLSec) * time.Second

	attempts, err := getEnvInt("ORDER_NUMBER_MAX_ATTEMPTS", cfg.OrderNumberMaxAttempts)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid ORDER_NUMBER_MAX_ATTEMPTS: %w", err)
	}
	if attempts <= 0 {
		return AppConfig{}, fmt.Errorf("ORDER_NUMBER_MAX_ATTEMPTS must be > 0")
	}
	cfg.OrderNumberMaxAttempts = attempts

	jwtTTLHour, err := getEnvInt("JWT_TTL_HOUR", int(cfg.JWTTTL.Hours()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid JWT_TTL_HOUR: %w", err)
	}
	if jwtTTLHour <= 0 {
		return AppConfig{}, fmt.Errorf("JWT_TTL_HOUR must be > 0")
	}
	cfg.JWTTTL = time.Duration(jwtTTLHour) * time.Hour

	cfg.EventsEnabled, err = getEnvBool("EVENTS_ENABLED", cfg.RedisAddr != "")
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid EVENTS_ENABLED: %w", err)
	}
	if cfg.EventsEnabled {
		if cfg.RedisAddr == "" {
			return AppConfig{}, fmt.Errorf("EVENTS_ENABLED requires REDIS_ADDR")
		}
		if len(cfg.KafkaBrokers) == 0 {
			return AppConfig{}, fmt.Errorf("KAFKA_BROKERS must not be empty")
		}
		if cfg.KafkaTopic == "" || cfg.KafkaGroupID == "" {
			return AppConfig{}, fmt.Errorf("KAFKA_TOPIC and KAFKA_GROUP_ID must not be empty")
		}
		if cfg.OrderEventStream == "" || cfg.OrderEventGroup == "" || cfg.OrderEventConsumer == "" {
			return AppConfig{}, fmt.Errorf("ORDER_EVENT_STREAM, ORDER_EVENT_GROUP and ORDER_EVENT_CONSUMER must not be empty")
		}
	}

	return cfg, nil
}

// getEnv 读取字符串环境变量，若为空则返回默认值。
func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// getEnvInt 读取整数环境变量，若为空则返回默认值。
func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseBool(v)
}

// splitCSV 将逗号分隔字符串解析为字符串切片。
func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
