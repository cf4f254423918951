// Package net builds the HTTP surface: the /game websocket endpoint plus the
// health and diagnostics routes.
package net

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"gridwalk/server/internal/net/ws"
	"gridwalk/server/internal/realtime"
	"gridwalk/server/internal/telemetry"
)

// NewRouter wires the gin engine. The gateway owns the websocket namespace;
// everything else is read-only plumbing.
func NewRouter(gw *ws.Gateway, hub *realtime.Hub, counters *telemetry.Counters) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/game", gw.Handle)

	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	router.GET("/diagnostics", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":           "ok",
			"serverTime":       time.Now().UnixMilli(),
			"connectedClients": hub.ClientCount(),
			"activeRooms":      hub.RoomCount(),
			"telemetry":        counters.Snapshot(),
		})
	})

	return router
}
