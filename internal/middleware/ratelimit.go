package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/box-office/internal/config"
	"github.com/iliyamo/box-office/internal/logging"
)

// tokenBucketScript refills and takes one token atomically.  It returns
// {allowed, remaining, retry_after_ms}.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill_tokens = tonumber(ARGV[3])
local interval_ms = tonumber(ARGV[4])
local ttl_seconds = tonumber(ARGV[5])

local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if tokens == nil or last_refill == nil then
    tokens = capacity
    last_refill = now_ms
end

if interval_ms > 0 and refill_tokens > 0 then
    local elapsed = math.max(0, now_ms - last_refill)
    local intervals = math.floor(elapsed / interval_ms)
    if intervals > 0 then
        tokens = math.min(capacity, tokens + (intervals * refill_tokens))
        last_refill = last_refill + (intervals * interval_ms)
    end
end

local allowed = 0
local retry_after_ms = 0
if tokens > 0 then
    allowed = 1
    tokens = tokens - 1
else
    local until_next = interval_ms - (now_ms - last_refill)
    if until_next < 0 then until_next = 0 end
    retry_after_ms = until_next
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill, 'capacity', capacity)
redis.call('EXPIRE', key, ttl_seconds)

return { allowed, tokens, retry_after_ms }
`)

// NewTokenBucket limits requests per key with a Redis token bucket.  It
// passes everything through when disabled or without a client, and fails
// open when Redis errors.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			ctx := c.Request().Context()

			args := []any{
				time.Now().UnixMilli(),
				cfg.Capacity,
				cfg.RefillTokens,
				cfg.RefillInterval.Milliseconds(),
				int64(cfg.TTL / time.Second),
			}
			vals, err := tokenBucketScript.Run(ctx, rdb, []string{key}, args...).Result()
			if err != nil {
				logging.FromContext(ctx).WithError(err).WithField("key", key).Warn("rate limit check failed")
				return next(c)
			}

			allowed, remaining, retryMs, ok := parseBucketResult(vals)
			if !ok {
				logging.FromContext(ctx).WithField("key", key).Warnf("unexpected rate limit result: %#v", vals)
				return next(c)
			}

			c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if !allowed {
				secs := retryAfterSeconds(retryMs)
				c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				if cfg.Debug {
					logging.FromContext(ctx).Infof("rate limit block key=%s retry=%dms", key, retryMs)
				}
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "rate limit exceeded",
					"code":        "too_many_requests",
					"retry_after": secs,
				})
			}

			if cfg.Debug {
				c.Response().Header().Set("X-RateLimit-Key", key)
			}
			return next(c)
		}
	}
}

func parseBucketResult(v any) (allowed bool, remaining, retryMs int64, ok bool) {
	arr, isSlice := v.([]any)
	if !isSlice || len(arr) != 3 {
		return false, 0, 0, false
	}
	if i, isInt := arr[0].(int64); isInt {
		allowed = i == 1
	} else {
		allowed = fmt.Sprint(arr[0]) == "1"
	}
	return allowed, asInt64(arr[1]), asInt64(arr[2]), true
}

func retryAfterSeconds(ms int64) int {
	secs := int(math.Ceil(float64(ms) / 1000.0))
	if secs < 0 {
		return 0
	}
	return secs
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int32:
		return int64(t)
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	parts := []string{cfg.Prefix}
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	uid := subject(c)
	route := c.Request().Method + " " + c.Path()

	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		parts = append(parts, "ip", ip)
	case "user":
		parts = append(parts, "user", uid)
	case "route":
		parts = append(parts, "route", route)
	case "ip_user":
		parts = append(parts, "ip", ip, "user", uid)
	case "user_route":
		parts = append(parts, "user", uid, "route", route)
	case "ip_user_route":
		parts = append(parts, "ip", ip, "user", uid, "route", route)
	default: // "ip_route"
		parts = append(parts, "ip", ip, "route", route)
	}
	return strings.Join(parts, ":")
}
