package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/talenthub/internal/handlers"
	"github.com/charlesng35/talenthub/internal/middleware"
	"github.com/charlesng35/talenthub/internal/models"
)

func registerDashboardRoutes(api *gin.RouterGroup, handler *handlers.DashboardHandler) {
	api.GET("/employer/jobs", middleware.RequireRole(models.RoleEmployer, models.RoleAdmin), handler.EmployerJobs)
	api.GET("/admin/stats", middleware.RequireRole(models.RoleAdmin), handler.Stats)
}

func registerSavedJobRoutes(api *gin.RouterGroup, handler *handlers.SavedJobHandler) {
	group := api.Group("/saved-jobs", middleware.RequireRole(models.RoleApplicant))
	{
		group.GET("", handler.List)
		group.POST("", handler.Save)
		group.DELETE("/:jobId", handler.Remove)
	}
}
