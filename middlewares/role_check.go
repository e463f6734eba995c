package middlewares

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"barpos-backend/models"
	"barpos-backend/utils"
)

// RoleCheck matches the :role path segment against the authenticated role.
// Admin passes every check.
func RoleCheck() gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.Param("role")
		userRole, exists := c.Get("role")

		if !exists {
			utils.RespondError(c, http.StatusUnauthorized, fmt.Errorf("unauthorized"))
			c.Abort()
			return
		}

		switch role {
		case models.RoleAdmin:
			if userRole != models.RoleAdmin {
				utils.RespondError(c, http.StatusForbidden, fmt.Errorf("admin access required"))
				c.Abort()
				return
			}
		case models.RoleCashier:
			if userRole != models.RoleCashier && userRole != models.RoleAdmin {
				utils.RespondError(c, http.StatusForbidden, fmt.Errorf("cashier access required"))
				c.Abort()
				return
			}
		case models.RoleWaiter:
			if userRole != models.RoleWaiter && userRole != models.RoleAdmin {
				utils.RespondError(c, http.StatusForbidden, fmt.Errorf("waiter access required"))
				c.Abort()
				return
			}
		case models.RoleKitchen:
			if userRole != models.RoleKitchen && userRole != models.RoleAdmin {
				utils.RespondError(c, http.StatusForbidden, fmt.Errorf("kitchen access required"))
				c.Abort()
				return
			}
		}

		c.Next()
	}
}

// RequireRoles limits a route group to an explicit role list.
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole, exists := c.Get("role")
		if !exists {
			utils.RespondError(c, http.StatusUnauthorized, fmt.Errorf("unauthorized"))
			c.Abort()
			return
		}

		for _, r := range roles {
			if userRole == r {
				c.Next()
				return
			}
		}

		utils.RespondError(c, http.StatusForbidden, fmt.Errorf("insufficient role"))
		c.Abort()
	}
}
