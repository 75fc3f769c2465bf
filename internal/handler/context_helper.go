package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ecorvi/schmng-api/internal/middleware"
	"github.com/ecorvi/schmng-api/internal/models"
	appErrors "github.com/ecorvi/schmng-api/pkg/errors"
	"github.com/ecorvi/schmng-api/pkg/response"
)

// sessionFromContext returns the caller session or writes 401.
func sessionFromContext(c *gin.Context) (models.Session, bool) {
	session, ok := middleware.CurrentSession(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Session{}, false
	}
	return session, true
}

// bindJSON decodes the body into dst or writes 400. Field rules are enforced by the services.
func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message))
		return false
	}
	return true
}

func bindQuery(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindQuery(dst); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query parameters"))
		return false
	}
	return true
}
