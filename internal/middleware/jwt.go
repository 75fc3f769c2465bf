package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ecorvi/schmng-api/internal/models"
	appErrors "github.com/ecorvi/schmng-api/pkg/errors"
	"github.com/ecorvi/schmng-api/pkg/response"
)

// ContextUserKey is the gin context key storing the caller session.
const ContextUserKey = "currentUser"

// streamTokenParam carries the token for EventSource clients, which cannot set headers.
const streamTokenParam = "access_token"

type tokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// JWT protects routes by requiring a valid access token and stores the session it carries.
func JWT(validator tokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		claims, err := validator.ValidateToken(token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims.Session())
		c.Next()
	}
}

// CurrentSession returns the session stored by JWT.
func CurrentSession(c *gin.Context) (models.Session, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return models.Session{}, false
	}
	session, ok := value.(models.Session)
	return session, ok
}

func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if token := strings.TrimSpace(c.Query(streamTokenParam)); token != "" && strings.HasSuffix(c.Request.URL.Path, "/stream") {
			return token, nil
		}
		return "", appErrors.ErrUnauthorized
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}
