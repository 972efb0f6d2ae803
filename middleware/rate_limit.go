package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"

	"washclub-checkout-api/utils"
)

type RateLimiter struct {
	client  *redis.Client
	configs map[string]RateLimitConfig
	now     func() time.Time
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Message  string
}

// DefaultRateLimits covers the endpoints that reach Stripe. Everything else
// falls back to the "default" entry.
var DefaultRateLimits = map[string]RateLimitConfig{
	"/api/checkout/session": {
		Requests: 5,
		Window:   10 * time.Minute,
		Message:  "Too many checkout attempts. Please wait a few minutes and try again.",
	},
	"/api/checkout/confirm": {
		Requests: 20,
		Window:   5 * time.Minute,
		Message:  "Too many confirmation requests. Please slow down.",
	},
	"/api/admin/": {
		Requests: 30,
		Window:   time.Minute,
		Message:  "Admin API rate limit exceeded.",
	},
	"default": {
		Requests: 120,
		Window:   time.Minute,
		Message:  "Rate limit exceeded. Please slow down your requests.",
	},
}

// NewRateLimiter uses a shared Redis client. A nil configs map selects DefaultRateLimits.
func NewRateLimiter(client *redis.Client, configs map[string]RateLimitConfig) *RateLimiter {
	if configs == nil {
		configs = DefaultRateLimits
	}
	return &RateLimiter{client: client, configs: configs, now: time.Now}
}

// Middleware enforces the limits. Redis failures let the request through.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bucket, config := rl.configFor(r.URL.Path)
		key := fmt.Sprintf("rate_limit:%s:%s", bucket, ClientIP(r))

		allowed, remaining, resetTime, err := rl.check(r.Context(), key, config)
		if err != nil {
			log.WithError(err).Warn("Rate limit check error")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.Requests))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

		if !allowed {
			log.WithFields(log.Fields{"key": key, "path": r.URL.Path}).Warn("Rate limit exceeded")
			retry := int64(resetTime.Sub(rl.now()).Seconds())
			if retry < 1 {
				retry = 1
			}
			w.Header().Set("Retry-After", strconv.FormatInt(retry, 10))
			utils.SendErrorResponse(w, http.StatusTooManyRequests, config.Message)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// configFor matches exact paths first, then entries ending in "/" as prefixes.
func (rl *RateLimiter) configFor(path string) (string, RateLimitConfig) {
	if config, ok := rl.configs[path]; ok {
		return path, config
	}
	for prefix, config := range rl.configs {
		if strings.HasSuffix(prefix, "/") && strings.HasPrefix(path, prefix) {
			return prefix, config
		}
	}
	return "default", rl.configs["default"]
}

var rateLimitScript = redis.NewScript(`
local key = KEYS[1]
local window_start = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local member = ARGV[4]
local ttl = tonumber(ARGV[5])

redis.call('ZREMRANGEBYSCORE', key, 0, window_start - 1)
local current = redis.call('ZCARD', key)
if current < limit then
	redis.call('ZADD', key, now, member)
	redis.call('EXPIRE', key, ttl)
	return {1, limit - current - 1}
end
return {0, 0}
`)

func (rl *RateLimiter) check(ctx context.Context, key string, config RateLimitConfig) (bool, int, time.Time, error) {
	now := rl.now()
	windowStart := now.Truncate(config.Window)
	windowEnd := windowStart.Add(config.Window)
	ttl := int64(config.Window.Seconds()) + 1

	result, err := rateLimitScript.Run(ctx, rl.client, []string{key},
		windowStart.Unix(), config.Requests, now.Unix(), strconv.FormatInt(now.UnixNano(), 10), ttl).Result()
	if err != nil {
		return false, 0, time.Time{}, err
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		return false, 0, time.Time{}, fmt.Errorf("unexpected redis result format")
	}
	allowed, ok1 := values[0].(int64)
	remaining, ok2 := values[1].(int64)
	if !ok1 || !ok2 {
		return false, 0, time.Time{}, fmt.Errorf("failed to parse redis result")
	}

	return allowed == 1, int(remaining), windowEnd, nil
}

// ClientIP prefers proxy headers, then the connection address.
func ClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
