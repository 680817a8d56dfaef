package middleware

import (
	"net/http"
	"strings"

	"shop/internal/user"

	"github.com/gin-gonic/gin"
)

const claimsKey = "auth.claims"

// RequireAdmin 校验 Bearer token 且要求 is_admin。
func RequireAdmin(tokens *user.Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "msg": "missing bearer token"})
			return
		}
		claims, err := tokens.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "msg": err.Error()})
			return
		}
		if !claims.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"code": http.StatusForbidden, "msg": "admin access required"})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// Claims 返回 RequireAdmin 写入的身份信息。
func Claims(c *gin.Context) (*user.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*user.Claims)
	return claims, ok
}
