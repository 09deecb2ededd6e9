package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/alwalid54321/su-st-sub001/internal/http/response"
	"github.com/alwalid54321/su-st-sub001/internal/logger"
	"github.com/alwalid54321/su-st-sub001/internal/pkg/apperror"
)

// RateLimitMiddleware ограничивает общее число запросов с одного IP.
// Это грубый фильтр поверх трекера попыток, а не замена ему.
// По умолчанию: 30 запросов в минуту.
func RateLimitMiddleware(limit int64, period time.Duration) gin.HandlerFunc {
	if limit <= 0 {
		limit = 30
	}
	if period <= 0 {
		period = time.Minute
	}

	instance := limiter.New(memory.NewStore(), limiter.Rate{
		Period: period,
		Limit:  limit,
	})

	return func(c *gin.Context) {
		lctx, err := instance.Get(c, c.ClientIP())
		if err != nil {
			logger.Log.WithError(err).Error("http: rate limiter failed")
			response.Abort(c, apperror.New(apperror.ErrCodeInternal, "Internal server error"))
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			response.Abort(c, apperror.RateLimited("Too many requests. Please try again later.", time.Unix(lctx.Reset, 0)))
			return
		}

		c.Next()
	}
}
