package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/visicontrol/visicontrol/internal/middleware"
	"github.com/visicontrol/visicontrol/internal/services"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// currentActor builds the service actor from the authenticated claims.
func currentActor(c *gin.Context) services.Actor {
	actor := services.Actor{
		UserID: c.GetString(middleware.CtxUserIDKey),
		Role:   c.GetString(middleware.CtxRoleKey),
	}
	if claims := middleware.Claims(c); claims != nil {
		actor.Name = claims.Name
	}
	return actor
}
