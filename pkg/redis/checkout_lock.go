package redis

import (
	"context"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// luaReleaseCheckoutLockIfMatch 仅当锁值与 token 相同才删除，避免误删后来请求的锁。
const luaReleaseCheckoutLockIfMatch = `
local lockKey = KEYS[1]
local token = ARGV[1]
if redis.call('GET', lockKey) == token then
  return redis.call('DEL', lockKey)
end
return 0
`

// AcquireCheckoutLock 同一用户同一时刻只允许一个下单请求在途。
// 返回 false 表示已有请求持有锁。
func AcquireCheckoutLock(ctx context.Context, rdb *rd.Client, userID uint, token string, ttl time.Duration) (bool, error) {
	return rdb.SetNX(ctx, CheckoutLockKey(userID), token, ttl).Result()
}

// ReleaseCheckoutLockIfMatch 安全释放下单锁。
func ReleaseCheckoutLockIfMatch(ctx context.Context, rdb *rd.Client, userID uint, token string) error {
	_, err := rdb.Eval(ctx, luaReleaseCheckoutLockIfMatch, []string{CheckoutLockKey(userID)}, token).Int()
	return err
}
