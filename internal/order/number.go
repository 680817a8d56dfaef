package order

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

const numberTimeLayout = "20060102150405"

// NumberGenerator 生成 ORD-<UTC 秒级时间戳>-<8 位大写十六进制随机串>。
// 时间戳便于阅读和排序，随机串保证实际不冲突；真正的唯一性由 orders.order_number 唯一索引兜底。
type NumberGenerator struct {
	Now  func() time.Time
	Rand io.Reader
}

// NewNumberGenerator 使用系统时钟和 crypto/rand。
func NewNumberGenerator() *NumberGenerator {
	return &NumberGenerator{Now: time.Now, Rand: rand.Reader}
}

func (g *NumberGenerator) Next() (string, error) {
	id, err := uuid.NewRandomFromReader(g.Rand)
	if err != nil {
		return "", fmt.Errorf("order number token: %w", err)
	}
	token := strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
	return "ORD-" + g.Now().UTC().Format(numberTimeLayout) + "-" + token, nil
}
