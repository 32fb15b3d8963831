package api

import (
	"github.com/gin-gonic/gin"

	"github.com/visicontrol/visicontrol/internal/handlers"
)

func registerAuthRoutes(api *gin.RouterGroup, handler *handlers.AuthHandler, requireAuth, limiter gin.HandlerFunc) {
	group := api.Group("/auth")
	{
		group.POST("/register", limiter, handler.Register)
		group.POST("/login", limiter, handler.Login)
		group.POST("/forgot-password", limiter, handler.ForgotPassword)
		group.POST("/reset-password", limiter, handler.ResetPassword)

		group.GET("/me", requireAuth, handler.Me)
		group.PATCH("/me", requireAuth, handler.UpdateMe)
		group.POST("/change-password", requireAuth, handler.ChangePassword)
	}
}
