package api

import (
	"github.com/gin-gonic/gin"

	"github.com/visicontrol/visicontrol/internal/handlers"
)

func registerNotificationRoutes(api *gin.RouterGroup, handler *handlers.NotificationHandler, requireAuth, streamAuth gin.HandlerFunc) {
	group := api.Group("/notifications")

	// EventSource cannot set headers, so the stream routes also accept ?token=.
	group.GET("/stream", streamAuth, handler.Stream)
	group.GET("/ws", streamAuth, handler.WebSocket)

	authed := group.Group("", requireAuth)
	{
		authed.GET("", handler.List)
		authed.GET("/unread-count", handler.UnreadCount)
		authed.POST("/mark-read", handler.MarkRead)
		authed.POST("/run-reminders", handler.RunReminders)
	}
}
