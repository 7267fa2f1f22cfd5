package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/socialgraph/internal/api/handler"
	"github.com/d60-Lab/socialgraph/pkg/auth"
	"github.com/d60-Lab/socialgraph/pkg/response"
)

func bearer(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// Auth 必须携带有效的 Bearer 令牌
func Auth(id auth.Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := bearer(c)
		if tok == "" {
			response.Unauthorized(c, "missing bearer token")
			return
		}
		userID, err := id.Resolve(tok)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			return
		}
		c.Set(handler.ContextUserID, userID)
		c.Next()
	}
}

// OptionalAuth 令牌无效时按匿名处理
func OptionalAuth(id auth.Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tok := bearer(c); tok != "" {
			if userID, err := id.Resolve(tok); err == nil {
				c.Set(handler.ContextUserID, userID)
			}
		}
		c.Next()
	}
}
