package redis

import "fmt"

const keyPrefix = "shop"

// RateLimitKey 限流窗口键，subject 形如 user:42 或 ip:1.2.3.4。
func RateLimitKey(scope, subject string) string {
	return fmt.Sprintf("%s:rate_limit:%s:%s", keyPrefix, scope, subject)
}

// CheckoutLockKey 标记某用户正在提交订单。
func CheckoutLockKey(userID uint) string {
	return fmt.Sprintf("%s:checkout:lock:%d", keyPrefix, userID)
}

// SaleRecordedKey 标记某订单是否已计入销售统计。
func SaleRecordedKey(orderNumber string) string {
	return fmt.Sprintf("%s:sales:recorded:%s", keyPrefix, orderNumber)
}

// SalesTotalsKey 全店汇总 hash：orders / revenue_cents。
func SalesTotalsKey() string {
	return keyPrefix + ":sales:totals"
}

// SalesProductsKey 有过销售的商品 ID 集合。
func SalesProductsKey() string {
	return keyPrefix + ":sales:products"
}

// ProductSalesKey 单商品汇总 hash：units / revenue_cents。
func ProductSalesKey(productID uint) string {
	return fmt.Sprintf("%s:sales:product:%d", keyPrefix, productID)
}
