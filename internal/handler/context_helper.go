package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hwlab/labtrack-api/internal/middleware"
	"github.com/hwlab/labtrack-api/internal/models"
)

func principalFromContext(c *gin.Context) *models.Principal {
	value, exists := c.Get(middleware.ContextPrincipalKey)
	if !exists {
		return nil
	}
	principal, ok := value.(*models.Principal)
	if !ok {
		return nil
	}
	return principal
}

func yearParam(c *gin.Context) (int, error) {
	return strconv.Atoi(c.Param("year"))
}

func idParam(c *gin.Context, name string) (int64, error) {
	return strconv.ParseInt(c.Param(name), 10, 64)
}
