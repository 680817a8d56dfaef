package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	rediskey "shop/pkg/redis"

	rd "github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
)

// SalesRecorder 累加销售统计；同一订单重复投递时返回 false。
type SalesRecorder interface {
	RecordSale(ctx context.Context, ev OrderEvent) (bool, error)
}

// RedisSalesRecorder 基于 Redis hash 的销售统计。
type RedisSalesRecorder struct {
	rdb *rd.Client
}

func NewRedisSalesRecorder(rdb *rd.Client) *RedisSalesRecorder {
	return &RedisSalesRecorder{rdb: rdb}
}

func (r *RedisSalesRecorder) RecordSale(ctx context.Context, ev OrderEvent) (bool, error) {
	sale := rediskey.Sale{
		OrderNumber: ev.OrderNumber,
		Total:       ev.TotalAmount,
		Lines:       make([]rediskey.SaleLine, 0, len(ev.Items)),
	}
	for _, it := range ev.Items {
		sale.Lines = append(sale.Lines, rediskey.SaleLine{ProductID: it.ProductID, Units: it.Quantity, Revenue: it.Subtotal})
	}
	return rediskey.RecordSaleOnce(ctx, r.rdb, sale)
}

// Consumer 消费 Kafka 订单事件，写入销售统计。
// 处理成功后才提交 offset，至少一次投递由 SalesRecorder 的幂等保证去重。
type Consumer struct {
	r        *kafka.Reader
	recorder SalesRecorder
	log      *slog.Logger
}

func NewConsumer(brokers []string, topic, groupID string, recorder SalesRecorder, log *slog.Logger) *Consumer {
	return &Consumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1e3,
			MaxBytes: 1e6,
		}),
		recorder: recorder,
		log:      log.With(slog.String("component", "consumer")),
	}
}

func (c *Consumer) Close() error { return c.r.Close() }

func (c *Consumer) Run(ctx context.Context) {
	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			return // ctx cancel / 连接断开等
		}

		for {
			err := c.handle(ctx, m.Value)
			if err == nil {
				break
			}
			c.log.Warn("record sale", slog.Int64("offset", m.Offset), slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}

		if err := c.r.CommitMessages(ctx, m); err != nil {
			c.log.Warn("commit offset", slog.Int64("offset", m.Offset), slog.String("error", err.Error()))
		}
	}
}

// handle 返回错误表示需要重试；脏消息只记日志并跳过。
func (c *Consumer) handle(ctx context.Context, value []byte) error {
	var ev OrderEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		c.log.Warn("drop undecodable event", slog.String("error", err.Error()))
		return nil
	}
	if err := ev.Validate(); err != nil {
		c.log.Warn("drop invalid event", slog.String("order_number", ev.OrderNumber), slog.String("error", err.Error()))
		return nil
	}

	first, err := c.recorder.RecordSale(ctx, ev)
	if err != nil {
		return fmt.Errorf("order %s: %w", ev.OrderNumber, err)
	}
	if !first {
		c.log.Debug("duplicate event skipped", slog.String("order_number", ev.OrderNumber))
		return nil
	}
	c.log.Info("sale recorded",
		slog.String("order_number", ev.OrderNumber),
		slog.String("total_amount", ev.TotalAmount.StringFixed(2)))
	return nil
}
