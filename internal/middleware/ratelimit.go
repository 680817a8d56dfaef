package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	rediskey "shop/pkg/redis"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
)

// luaRateLimit：Redis 滑动窗口限流 Lua 脚本（原子操作）
// KEYS[1]=限流key，ARGV[1]=当前时间戳(ms)，ARGV[2]=窗口开始时间戳(ms)，ARGV[3]=窗口秒数，ARGV[4]=成员，ARGV[5]=上限
// 返回：当前窗口内的请求数（超限返回 -1）
const luaRateLimit = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local windowStart = tonumber(ARGV[2])
local windowSec = tonumber(ARGV[3])
local member = ARGV[4]

-- 删除窗口外的旧记录
redis.call('ZREMRANGEBYSCORE', key, '0', windowStart)

-- 统计当前窗口内的请求数
local count = redis.call('ZCARD', key)

if count < tonumber(ARGV[5]) then
  redis.call('ZADD', key, now, member)
  redis.call('EXPIRE', key, windowSec)
  return count + 1
else
  return -1
end
`

// RedisRateLimit Redis 分布式限流（Lua 原子操作 + 按用户）。
// rdb 为 nil 或 Redis 出错时放行。
func RedisRateLimit(rdb *rd.Client, scope string, limit int, window time.Duration, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil {
			c.Next()
			return
		}

		// 限流 key：按 user_id（路径或 body），解析不到时按 IP
		var subject string
		if userID := requestUserID(c); userID > 0 {
			subject = fmt.Sprintf("user:%d", userID)
		} else {
			subject = "ip:" + c.ClientIP()
		}
		key := rediskey.RateLimitKey(scope, subject)

		now := time.Now()
		windowStart := now.Add(-window).UnixMilli()
		member := fmt.Sprintf("%d-%d", now.UnixMilli(), now.UnixNano())

		res, err := rdb.Eval(c.Request.Context(), luaRateLimit, []string{key},
			now.UnixMilli(), windowStart, max(int64(window.Seconds()), 1), member, limit).Int()
		if err != nil {
			// Redis 出错时放行（降级策略）
			log.WarnContext(c.Request.Context(), "rate limit unavailable", slog.String("error", err.Error()))
			c.Next()
			return
		}

		if res < 0 {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code": http.StatusTooManyRequests,
				"msg":  "too many requests, please retry later",
			})
			return
		}
		c.Next()
	}
}

// requestUserID 先取路径参数 :user_id，没有时从 JSON body 解析（不消耗 body）。
func requestUserID(c *gin.Context) uint64 {
	if v := c.Param("user_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err == nil {
			return id
		}
	}
	if c.Request.Body == nil {
		return 0
	}

	bodyBytes, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return 0
	}
	// 重置 body，让后续 handler 能继续读
	c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

	var req struct {
		UserID uint64 `json:"user_id"`
	}
	if err := json.Unmarshal(bodyBytes, &req); err != nil {
		return 0
	}
	return req.UserID
}
