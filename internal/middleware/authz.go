package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"reicrm/internal/authz"
)

func RequireRoles(allowed ...authz.Role) gin.HandlerFunc {
	allowedSet := map[authz.Role]struct{}{}
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}
	return func(c *gin.Context) {
		role := RoleFrom(c)
		if role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "no role in context"})
			return
		}
		if _, ok := allowedSet[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}
		c.Next()
	}
}

// RequirePlan rejects callers below min. Admins pass regardless when adminBypass is set.
func RequirePlan(min authz.Plan, adminBypass bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminBypass && RoleFrom(c) == authz.RoleAdmin {
			c.Next()
			return
		}
		if !PlanFrom(c).AtLeast(min) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":        "subscription plan does not include this feature",
				"requiredPlan": min,
			})
			return
		}
		c.Next()
	}
}

// ReadOnlyGuard blocks unsafe methods for read-only roles.
func ReadOnlyGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		if authz.IsReadOnly(RoleFrom(c)) {
			switch c.Request.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
			default:
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "read-only role"})
				return
			}
		}
		c.Next()
	}
}
