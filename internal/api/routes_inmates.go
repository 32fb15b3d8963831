package api

import (
	"github.com/gin-gonic/gin"

	"github.com/visicontrol/visicontrol/internal/handlers"
	"github.com/visicontrol/visicontrol/internal/middleware"
	"github.com/visicontrol/visicontrol/internal/models"
)

func registerInmateRoutes(api *gin.RouterGroup, handler *handlers.InmateHandler, requireAuth gin.HandlerFunc) {
	group := api.Group("/inmates", requireAuth)
	group.GET("/my", handler.ListMine)

	admin := group.Group("", middleware.RequireRole(models.RoleAdmin))
	{
		admin.GET("", handler.List)
		admin.GET("/:id", handler.Get)
		admin.POST("", handler.Create)
		admin.PUT("/:id", handler.Update)
		admin.POST("/:id/authorize", handler.Authorize)
		admin.DELETE("/:id/authorize/:userId", handler.Unauthorize)
	}
}
