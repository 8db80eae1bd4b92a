package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reformshop/backend/internal/domain/cart"
	"github.com/reformshop/backend/internal/infrastructure/auth"
	"github.com/reformshop/backend/internal/infrastructure/logger"
)

const (
	// IdentityContextKey is the gin context key holding the resolved identity
	IdentityContextKey = "cart_identity"

	// AuthHeaderKey is the header carrying the bearer token
	AuthHeaderKey = "Authorization"
	// BearerPrefix prefixes the token in the auth header
	BearerPrefix = "Bearer "
)

// Identity resolves the request's cart identity from the Authorization
// header. No header means anonymous; a present but invalid token is a 401,
// never a silent downgrade to anonymous, since that would route an
// authenticated user's mutations into the guest cart.
func Identity(jwtService *auth.JWTService, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		authHeader := c.GetHeader(AuthHeaderKey)
		if authHeader == "" {
			c.Set(IdentityContextKey, cart.Anonymous())
			c.Next()
			return
		}

		if !strings.HasPrefix(authHeader, BearerPrefix) {
			rejectToken(c, "INVALID_TOKEN", "Invalid authorization header format")
			return
		}
		tokenString := strings.TrimPrefix(authHeader, BearerPrefix)
		if tokenString == "" {
			rejectToken(c, "INVALID_TOKEN", "Missing token")
			return
		}

		identity, err := jwtService.IdentityFromToken(tokenString)
		if err != nil {
			log.Warn("token validation failed",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err))
			code, message := "INVALID_TOKEN", "Invalid token"
			if err == auth.ErrExpiredToken {
				code, message = "TOKEN_EXPIRED", "Token has expired"
			}
			rejectToken(c, code, message)
			return
		}

		c.Set(IdentityContextKey, identity)

		ctx := c.Request.Context()
		ctx, _ = logger.WithUserID(ctx, logger.FromContext(ctx), identity.Key())
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// GetIdentity retrieves the resolved identity from gin.Context
func GetIdentity(c *gin.Context) cart.Identity {
	if v, exists := c.Get(IdentityContextKey); exists {
		if identity, ok := v.(cart.Identity); ok {
			return identity
		}
	}
	return cart.Anonymous()
}

func rejectToken(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}
