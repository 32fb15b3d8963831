package api

import (
	"github.com/gin-gonic/gin"

	"github.com/visicontrol/visicontrol/internal/handlers"
	"github.com/visicontrol/visicontrol/internal/middleware"
	"github.com/visicontrol/visicontrol/internal/models"
)

func registerVisitRoutes(api *gin.RouterGroup, handler *handlers.VisitHandler, requireAuth gin.HandlerFunc) {
	group := api.Group("/visits", requireAuth)
	{
		group.GET("", handler.List)
		group.POST("", handler.Create)
		group.PUT("/:id", middleware.RequireRole(models.RoleAdmin), handler.Update)
		group.DELETE("/:id", handler.Delete)
	}
}
