package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	rd "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// luaRecordSaleOnce 通过 SETNX 标记保证「同一订单只计一次」。
// KEYS[1]=已计标记，KEYS[2]=全店汇总，KEYS[3]=商品集合，KEYS[4..]=各商品汇总
// ARGV[1]=标记 TTL 秒，ARGV[2]=订单金额（分），之后每三个一组：商品ID、件数、金额（分）
const luaRecordSaleOnce = `
local seenKey = KEYS[1]
local totalsKey = KEYS[2]
local productsKey = KEYS[3]
local ttlSec = tonumber(ARGV[1])

if redis.call('SETNX', seenKey, '1') == 1 then
  redis.call('EXPIRE', seenKey, ttlSec)
  redis.call('HINCRBY', totalsKey, 'orders', 1)
  redis.call('HINCRBY', totalsKey, 'revenue_cents', ARGV[2])
  local n = (#ARGV - 2) / 3
  for i = 0, n - 1 do
    local productKey = KEYS[4 + i]
    redis.call('SADD', productsKey, ARGV[3 + i * 3])
    redis.call('HINCRBY', productKey, 'units', ARGV[4 + i * 3])
    redis.call('HINCRBY', productKey, 'revenue_cents', ARGV[5 + i * 3])
  end
  return 1
end
return 0
`

const saleRecordedTTL = 7 * 24 * time.Hour

type SaleLine struct {
	ProductID uint
	Units     int64
	Revenue   decimal.Decimal
}

type Sale struct {
	OrderNumber string
	Total       decimal.Decimal
	Lines       []SaleLine
}

// RecordSaleOnce 幂等累加销售统计：
// - 首次计入返回 true
// - 重复消息返回 false（不会重复累加）
func RecordSaleOnce(ctx context.Context, rdb *rd.Client, sale Sale) (bool, error) {
	keys := make([]string, 0, 3+len(sale.Lines))
	keys = append(keys, SaleRecordedKey(sale.OrderNumber), SalesTotalsKey(), SalesProductsKey())
	args := make([]interface{}, 0, 2+3*len(sale.Lines))
	args = append(args, int64(saleRecordedTTL/time.Second), toCents(sale.Total))
	for _, l := range sale.Lines {
		keys = append(keys, ProductSalesKey(l.ProductID))
		args = append(args, l.ProductID, l.Units, toCents(l.Revenue))
	}

	n, err := rdb.Eval(ctx, luaRecordSaleOnce, keys, args...).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

type ProductSales struct {
	ProductID uint            `json:"product_id"`
	Units     int64           `json:"units"`
	Revenue   decimal.Decimal `json:"revenue"`
}

type SalesSummary struct {
	Orders   int64           `json:"orders"`
	Revenue  decimal.Decimal `json:"revenue"`
	Products []ProductSales  `json:"products"`
}

// GetSalesSummary 读取累计销售统计，商品按 ID 升序。
func GetSalesSummary(ctx context.Context, rdb *rd.Client) (SalesSummary, error) {
	totals, err := rdb.HGetAll(ctx, SalesTotalsKey()).Result()
	if err != nil {
		return SalesSummary{}, err
	}
	members, err := rdb.SMembers(ctx, SalesProductsKey()).Result()
	if err != nil {
		return SalesSummary{}, err
	}

	out := SalesSummary{
		Orders:   parseInt(totals["orders"]),
		Revenue:  fromCents(parseInt(totals["revenue_cents"])),
		Products: make([]ProductSales, 0, len(members)),
	}
	if len(members) == 0 {
		return out, nil
	}

	ids := make([]uint, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			return SalesSummary{}, fmt.Errorf("invalid product id %q in sales set", m)
		}
		ids = append(ids, uint(id))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	pipe := rdb.Pipeline()
	cmds := make([]*rd.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, ProductSalesKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return SalesSummary{}, err
	}
	for i, id := range ids {
		h := cmds[i].Val()
		out.Products = append(out.Products, ProductSales{
			ProductID: id,
			Units:     parseInt(h["units"]),
			Revenue:   fromCents(parseInt(h["revenue_cents"])),
		})
	}
	return out, nil
}

func toCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

func fromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

func parseInt(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
