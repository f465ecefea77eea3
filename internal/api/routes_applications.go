package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/talenthub/internal/handlers"
	"github.com/charlesng35/talenthub/internal/middleware"
	"github.com/charlesng35/talenthub/internal/models"
)

func registerApplicationRoutes(api *gin.RouterGroup, handler *handlers.ApplicationHandler) {
	manage := middleware.RequireRole(models.RoleEmployer, models.RoleAdmin)

	group := api.Group("/applications")
	{
		group.POST("", middleware.RequireRole(models.RoleApplicant, models.RoleAdmin), handler.Apply)
		group.GET("/job/:jobId", manage, handler.ListForJob)
		group.GET("/:userId", handler.ListForUser)
		group.PUT("/:id/status", manage, handler.UpdateStatus)
		group.DELETE("/:id", manage, handler.Delete)
	}
}
