package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/socialgraph/pkg/response"
)

// AdminOnly 校验 X-Admin-Token；未配置令牌时一律拒绝
func AdminOnly(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader("X-Admin-Token")
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Response{
				Code:    response.CodePermissionDenied,
				Message: "admin token required",
			})
			return
		}
		c.Next()
	}
}
