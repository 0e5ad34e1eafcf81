package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"wardtrack-server/internal/config"
	"wardtrack-server/internal/utils"
)

// WebhookAuth verifies the bearer token of a webhook call.
func WebhookAuth(cfg config.WebhookConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.Unauthorized(c, "Authorization header required")
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			utils.Unauthorized(c, "Invalid authorization header format")
			c.Abort()
			return
		}

		claims, err := utils.ValidateToken(parts[1], cfg.Secret, cfg.Issuer)
		if err != nil {
			utils.Unauthorized(c, "Invalid token: "+err.Error())
			c.Abort()
			return
		}

		c.Set("webhookSource", claims.Source)
		c.Next()
	}
}
