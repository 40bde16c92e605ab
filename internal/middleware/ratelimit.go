package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	appredis "github.com/moody-app/moody/internal/pkg/redis"
	"github.com/moody-app/moody/internal/pkg/response"
	"go.uber.org/zap"
)

// RateLimit allows limit requests per window for each signed-in user (or
// client IP when anonymous) on the routes it guards. A limit of 0 disables
// it. Redis errors let the request through.
func RateLimit(rdb *appredis.Client, name string, limit int, window time.Duration, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		if rdb == nil || limit <= 0 {
			c.Next()
			return
		}
		who := CurrentUserID(c)
		if who == "" {
			who = "ip:" + c.ClientIP()
		}
		bucket := time.Now().UnixNano() / int64(window)
		key := fmt.Sprintf("moody:rate_limit:%s:%s:%d", name, who, bucket)

		count, err := rdb.Hit(c.Request.Context(), key, window+time.Second)
		if err != nil {
			log.Warn("rate limit unavailable", zap.String("limit", name), zap.Error(err))
			c.Next()
			return
		}
		if count > int64(limit) {
			response.TooManyRequests(c, strconv.Itoa(int(window.Seconds()+0.5)))
			return
		}
		c.Next()
	}
}
