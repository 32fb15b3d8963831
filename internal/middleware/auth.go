package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/visicontrol/visicontrol/internal/auth"
	"github.com/visicontrol/visicontrol/pkg/errors"
	"github.com/visicontrol/visicontrol/pkg/response"
)

const (
	CtxClaimsKey = "authClaims"
	CtxUserIDKey = "userID"
	CtxRoleKey   = "userRole"
)

// Auth enforces JWT authentication using the bearer Authorization header.
func Auth(jwt *iauth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authenticate(c, jwt, bearerToken(c))
	}
}

// StreamAuth accepts the token from the `token` query parameter or the bearer
// header. Browsers cannot set headers on EventSource requests. It runs before
// any byte of the stream is written.
func StreamAuth(jwt *iauth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.Query("token"))
		if token == "" {
			token = bearerToken(c)
		}
		authenticate(c, jwt, token)
	}
}

// RequireRole rejects authenticated callers that do not carry role.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(CtxRoleKey) != role {
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// Claims returns the validated token claims stored by Auth.
func Claims(c *gin.Context) *iauth.Claims {
	value, ok := c.Get(CtxClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := value.(*iauth.Claims)
	return claims
}

func authenticate(c *gin.Context, jwt *iauth.JWTService, token string) {
	if token == "" {
		c.Header("WWW-Authenticate", "Bearer")
		response.Error(c, errors.ErrUnauthorized)
		c.Abort()
		return
	}

	claims, err := jwt.ValidateAccessToken(token)
	if err != nil || strings.TrimSpace(claims.UserID) == "" {
		// Normalise all validation failures to 401
		c.Header("WWW-Authenticate", "Bearer")
		response.Error(c, errors.ErrUnauthorized)
		c.Abort()
		return
	}

	// Propagate identity into request context
	c.Set(CtxClaimsKey, claims)
	c.Set(CtxUserIDKey, claims.UserID)
	c.Set(CtxRoleKey, claims.Role)

	c.Next()
}

func bearerToken(c *gin.Context) string {
	authz := c.GetHeader("Authorization")
	if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(authz[7:])
}
