package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	libredis "github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/ignatzorin/scout-reports/internal/dto"
)

const limiterPrefix = "scout_limiter"

// NewLimiterStore хранилище счётчиков: Redis, если задан redisURL, иначе память процесса.
func NewLimiterStore(redisURL string) (limiter.Store, error) {
	if redisURL == "" {
		return memory.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          limiterPrefix,
			CleanUpInterval: limiter.DefaultCleanUpInterval,
		}), nil
	}

	opts, err := libredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("rate limit: разбор REDIS_URL: %w", err)
	}
	store, err := sredis.NewStoreWithOptions(libredis.NewClient(opts), limiter.StoreOptions{
		Prefix: limiterPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("rate limit: подключение к redis: %w", err)
	}
	return store, nil
}

// RateLimitMiddleware ограничивает количество запросов с одного IP.
// name разделяет счётчики разных групп маршрутов в общем хранилище.
// По умолчанию: 10 запросов в минуту.
func RateLimitMiddleware(store limiter.Store, name string, limit int64, period time.Duration) gin.HandlerFunc {
	if limit <= 0 {
		limit = 10
	}
	if period <= 0 {
		period = 1 * time.Minute
	}

	instance := limiter.New(store, limiter.Rate{Period: period, Limit: limit})

	return func(c *gin.Context) {
		lctx, err := instance.Get(c.Request.Context(), name+":"+c.ClientIP())
		if err != nil {
			_ = c.Error(fmt.Errorf("rate limit: %w", err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, dto.Envelope{Error: internalMessage})
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.Envelope{
				Error: "слишком много запросов, попробуйте позже",
			})
			return
		}

		c.Next()
	}
}
