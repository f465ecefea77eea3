package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/talenthub/internal/handlers"
)

// Every notification route is scoped to the caller's own inbox.
func registerNotificationRoutes(api *gin.RouterGroup, handler *handlers.NotificationHandler) {
	group := api.Group("/notifications")
	{
		group.GET("", handler.List)
		group.GET("/count", handler.Count)
		group.PUT("/read-all", handler.MarkAllRead)
		group.PUT("/:id/read", handler.MarkRead)
		group.DELETE("/:id", handler.Delete)
	}
}
