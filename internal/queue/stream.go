package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"shop/internal/model"

	rd "github.com/redis/go-redis/v9"
)

const streamMaxLen = 100000

// StreamPublisher 把订单事件写入 Redis Stream，由 Relay 异步转发到 Kafka。
// 下单接口只等一次 XADD，不直接依赖 Kafka 的可用性。
type StreamPublisher struct {
	rdb    *rd.Client
	stream string
}

func NewStreamPublisher(rdb *rd.Client, stream string) *StreamPublisher {
	return &StreamPublisher{rdb: rdb, stream: stream}
}

// OrderCreated 满足 order.EventSink。
func (p *StreamPublisher) OrderCreated(ctx context.Context, o *model.Order) error {
	payload, err := json.Marshal(NewOrderEvent(o))
	if err != nil {
		return err
	}
	err = p.rdb.XAdd(ctx, &rd.XAddArgs{
		Stream: p.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"order_number": o.OrderNumber,
			"payload":      string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}
