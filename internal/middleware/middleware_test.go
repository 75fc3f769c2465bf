package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecorvi/schmng-api/internal/models"
	appErrors "github.com/ecorvi/schmng-api/pkg/errors"
)

type staticValidator map[string]*models.JWTClaims

func (v staticValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := v[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

type recordedRequest struct {
	method, path string
	status       int
}

type recordingObserver struct {
	requests []recordedRequest
}

func (o *recordingObserver) ObserveHTTPRequest(method, path string, status int, _ time.Duration) {
	o.requests = append(o.requests, recordedRequest{method, path, status})
}

func newRouter(validator tokenValidator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(JWT(validator))
	echo := func(c *gin.Context) {
		session, _ := CurrentSession(c)
		c.JSON(http.StatusOK, gin.H{"user_id": session.UserID, "role": session.Role})
	}
	r.GET("/me", echo)
	r.GET("/list/stream", echo)
	r.GET("/admin", RequireRoles(models.RoleAdmin), echo)
	r.GET("/people/:id", RBAC(string(models.RoleAdmin), RoleSelf), echo)
	return r
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func do(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestJWTStoresSession(t *testing.T) {
	r := newRouter(staticValidator{"t1": {UserID: "u1", Role: models.RoleTeacher, Email: "t@example.com"}})

	rec := do(r, "/me", "t1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":"u1","role":"TEACHER"}`, rec.Body.String())

	rec = do(r, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, errorCode(t, rec))

	rec = do(r, "/me", "bogus")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAcceptsQueryTokenOnStreamsOnly(t *testing.T) {
	r := newRouter(staticValidator{"t1": {UserID: "u1", Role: models.RoleStudent}})

	rec := do(r, "/list/stream?access_token=t1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(r, "/me?access_token=t1", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRBAC(t *testing.T) {
	r := newRouter(staticValidator{
		"admin":   {UserID: "a1", Role: models.RoleAdmin},
		"student": {UserID: "s1", Role: models.RoleStudent},
	})

	assert.Equal(t, http.StatusOK, do(r, "/admin", "admin").Code)

	rec := do(r, "/admin", "student")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, appErrors.ErrForbidden.Code, errorCode(t, rec))

	assert.Equal(t, http.StatusOK, do(r, "/people/s1", "student").Code)
	assert.Equal(t, http.StatusForbidden, do(r, "/people/s2", "student").Code)
	assert.Equal(t, http.StatusOK, do(r, "/people/s2", "admin").Code)
}

func TestRBACWithoutSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", RequireRoles(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusUnauthorized, do(r, "/admin", "").Code)
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	obs := &recordingObserver{}
	r := gin.New()
	r.Use(Metrics(obs))
	r.GET("/fees/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	do(r, "/fees/abc", "")
	do(r, "/nowhere/42", "")

	require.Len(t, obs.requests, 2)
	assert.Equal(t, recordedRequest{http.MethodGet, "/fees/:id", http.StatusNoContent}, obs.requests[0])
	assert.Equal(t, "unmatched", obs.requests[1].path)
	assert.Equal(t, http.StatusNotFound, obs.requests[1].status)
}

func TestResponseMetaReportsProcessingTime(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(WithResponseMeta())
	r.GET("/summary", func(c *gin.Context) {
		SetCacheHit(c, true)
		c.JSON(http.StatusOK, Meta(c))
	})

	rec := do(r, "/summary", "")
	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &meta))
	assert.Equal(t, true, meta["cache_hit"])
	assert.Contains(t, meta, "processing_time_ms")
	assert.NotContains(t, meta, "started_at")
}
