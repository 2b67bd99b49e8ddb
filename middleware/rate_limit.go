package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/cosmarket/points/config"
	"github.com/cosmarket/points/utils"
)

type ipLimiter struct {
	limiter *rate.Limiter
	expires time.Time
}

var (
	ipLimiters   = map[string]*ipLimiter{}
	ipLimitersMu sync.Mutex
)

// IPRateLimit is the perimeter limiter: a token bucket per client IP in front
// of every API group. The domain-level fixed-window limiter sits behind it
// for per-action budgets.
func IPRateLimit() gin.HandlerFunc {
	cfg := config.Get()
	perMinute := cfg.RateLimitPerMinute
	if perMinute < 1 {
		perMinute = 1
	}
	r := rate.Every(time.Minute / time.Duration(perMinute))
	burst := perMinute / 2
	if burst < 1 {
		burst = 1
	}

	return func(ctx *gin.Context) {
		if !getIPLimiter(ctx.ClientIP(), r, burst).Allow() {
			utils.Error(ctx, 429, 42901, "rate limit exceeded")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

func getIPLimiter(key string, limit rate.Limit, burst int) *rate.Limiter {
	ipLimitersMu.Lock()
	defer ipLimitersMu.Unlock()

	now := time.Now()
	for k, l := range ipLimiters {
		if now.After(l.expires) {
			delete(ipLimiters, k)
		}
	}

	if l, ok := ipLimiters[key]; ok {
		l.expires = now.Add(5 * time.Minute)
		return l.limiter
	}

	l := &ipLimiter{
		limiter: rate.NewLimiter(limit, burst),
		expires: now.Add(5 * time.Minute),
	}
	ipLimiters[key] = l
	return l.limiter
}
