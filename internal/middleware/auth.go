package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"reicrm/internal/authz"
	"reicrm/internal/utils"
)

// Context keys set by AuthMiddleware.
const (
	CtxUserID = "user_id"
	CtxRole   = "role"
	CtxPlan   = "plan"
)

func bearerToken(c *gin.Context) string {
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// AuthMiddleware validates the bearer access token and puts user, role and plan in the context.
func AuthMiddleware(tokens *utils.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		tokenStr := bearerToken(c)
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid Authorization header"})
			return
		}
		claims, err := tokens.Parse(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxRole, claims.Role)
		c.Set(CtxPlan, claims.Plan)
		c.Next()
	}
}

func RoleFrom(c *gin.Context) authz.Role {
	v, _ := c.Get(CtxRole)
	r, _ := v.(authz.Role)
	return r
}

func PlanFrom(c *gin.Context) authz.Plan {
	v, _ := c.Get(CtxPlan)
	p, _ := v.(authz.Plan)
	return p
}

func UserIDFrom(c *gin.Context) int64 {
	v, _ := c.Get(CtxUserID)
	id, _ := v.(int64)
	return id
}
