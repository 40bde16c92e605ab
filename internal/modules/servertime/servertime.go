// Package servertime lets clients sync their clock and calendar day with
// the server's timezone.
package servertime

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/moody-app/moody/internal/pkg/clock"
	"github.com/moody-app/moody/internal/pkg/datekey"
)

// RegisterRoutes mounts the clock sync endpoint. t2 and t3 are the receive
// and send timestamps in unix milliseconds; today is the YYYY-MM-DD key.
func RegisterRoutes(rg *gin.RouterGroup, c clock.Clock, loc *time.Location) {
	c = clock.OrReal(c)
	if loc == nil {
		loc = time.UTC
	}
	rg.GET("/server-time", func(ctx *gin.Context) {
		now := clock.InZone(c.Now(), loc)
		ctx.JSON(200, gin.H{
			"t2":       now.UnixMilli(),
			"today":    datekey.FromTime(now),
			"timezone": loc.String(),
			"t3":       c.Now().UnixMilli(),
		})
	})
}
