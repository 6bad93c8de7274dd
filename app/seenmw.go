// app/seenmw.go
package app

import (
	"equipment_lending/db"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// TouchLastSeen updates users.last_seen_at at most once per throttle window;
// the window is tracked with a Redis SETNX key.
func TouchLastSeen(repo *db.Repo, rdb *redis.Client, throttle time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := CurrentUserID(c)
		if !ok || rdb == nil {
			c.Next()
			return
		}

		key := "lending:lastseen:" + strconv.FormatUint(uint64(uid), 10)
		if ok, _ := rdb.SetNX(c.Request.Context(), key, "1", throttle).Result(); ok {
			_ = repo.TouchUserSeen(c.Request.Context(), uid) // 忽略错误，不阻塞请求
		}
		c.Next()
	}
}
