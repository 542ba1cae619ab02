package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/hwlab/labtrack-api/internal/models"
	appErrors "github.com/hwlab/labtrack-api/pkg/errors"
	"github.com/hwlab/labtrack-api/pkg/response"
)

// RequireSiteAdmin guards routes that are not tied to a single year,
// such as year creation and deletion. Year-scoped authorization stays in
// the service layer, which knows which year a request targets.
func RequireSiteAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(ContextPrincipalKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		principal, ok := value.(*models.Principal)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if err := principal.EnsureSiteAdmin(); err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}
