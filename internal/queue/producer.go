package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const orderCreatedType = "order.created"

// messageWriter 是 kafka.Writer 的最小子集，测试时替换。
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer 把订单事件写入 Kafka，供 Relay 调用。
type Producer struct {
	w messageWriter
}

// NewProducer 按订单号做 Hash 分区，同一订单的消息有序；RequireAll 等待 ISR 确认。
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			MaxAttempts:  5,
			WriteTimeout: 5 * time.Second,
			ReadTimeout:  5 * time.Second,
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

func (p *Producer) Close() error { return p.w.Close() }

// Publish 校验后同步写入。脏事件直接返回错误，不进 topic。
func (p *Producer) Publish(ctx context.Context, ev OrderEvent) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("invalid order event %s: %w", ev.OrderNumber, err)
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(ev.OrderNumber),
		Value: b,
		Time:  ev.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(orderCreatedType)},
			{Key: "content_type", Value: []byte("application/json")},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish order %s: %w", ev.OrderNumber, err)
	}
	return nil
}
