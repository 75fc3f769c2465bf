package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/ecorvi/schmng-api/pkg/errors"
)

// Envelope wraps every JSON body. Meta carries the request id and, for cached reads, cache_hit.
type Envelope struct {
	Data  interface{}            `json:"data,omitempty"`
	Error *appErrors.Error       `json:"error,omitempty"`
	Meta  map[string]interface{} `json:"meta,omitempty"`
}

// JSON writes data with status. School records are per-user, so nothing is cacheable downstream.
func JSON(c *gin.Context, status int, data interface{}, meta map[string]interface{}) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(status, Envelope{Data: data, Meta: meta})
}

// OK writes a 200 with data.
func OK(c *gin.Context, data interface{}) {
	JSON(c, http.StatusOK, data, nil)
}

// Created writes a 201 for a stored record or a rendered export.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data, nil)
}

// Accepted writes a 202 once a job such as a password-reset mail is queued.
func Accepted(c *gin.Context, data interface{}) {
	JSON(c, http.StatusAccepted, data, nil)
}

// Error maps err onto the error taxonomy and writes its status with code, message and details.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(appErr.Status, Envelope{Error: appErr})
}

// NoContent writes a bare 204, used for deletes.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
