package middlewares

import (
	"github.com/Vatscode/Mini-ERP/utils"
	"github.com/gin-gonic/gin"
)

// IdentityMiddleware records who performed the change for the ledger's
// created_by column. Upstream auth (gateway, proxy) sets the header; absent
// means anonymous.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userName := c.GetHeader("x-user-name")
		if userName == "" {
			userName = "anonymous"
		}
		c.Request = c.Request.WithContext(utils.SetUserNameInContext(c.Request.Context(), userName))
		c.Next()
	}
}
