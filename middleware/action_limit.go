package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cosmarket/points/ratelimit"
	"github.com/cosmarket/points/utils"
)

// ActionLimit applies the fixed-window limiter to one named action, keyed by
// the authenticated account when present, otherwise the client IP. The check
// itself counts against the window, so hammering a blocked endpoint only
// pushes recovery further out.
func ActionLimit(l *ratelimit.Limiter, action string, window time.Duration, max int) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		identifier := ctx.ClientIP()
		if id, ok := AccountID(ctx); ok {
			identifier = "acct:" + strconv.FormatUint(uint64(id), 10)
		}

		d := l.Check(action, identifier, window, max)
		if !d.Allowed {
			retry := int(d.RetryAfter.Seconds() + 0.5)
			ctx.Header("Retry-After", strconv.Itoa(retry))
			utils.Error(ctx, 429, 42902,
				fmt.Sprintf("too many %s requests, retry after %d seconds", action, retry))
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}
