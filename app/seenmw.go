package app

import (
	"time"

	"lendbook/storage"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// TouchLastSeen updates the account's last-seen time at most once per
// throttle window. The window is a Redis key with a TTL.
func TouchLastSeen(accounts storage.AccountStore, rdb redis.Cmdable, throttle time.Duration, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := UserID(c)
		if uid == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := "lendbook:lastseen:" + uid
		ok, err := rdb.SetNX(ctx, key, "1", throttle).Result()
		if err != nil {
			log.Debug("last-seen throttle unavailable", zap.Error(err))
		} else if ok {
			if err := accounts.TouchUserSeen(ctx, uid); err != nil {
				log.Debug("touch last seen", zap.String("user_id", uid), zap.Error(err))
			}
		}
		c.Next()
	}
}
