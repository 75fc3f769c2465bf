package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const responseMetaKey = "response_meta"

// ResponseMeta collects envelope metadata that handlers and middleware add while serving a request.
type ResponseMeta map[string]interface{}

// WithResponseMeta gives every request a metadata map.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(responseMetaKey, ResponseMeta{"started_at": time.Now().UTC()})
		c.Next()
	}
}

// SetCacheHit records whether the response body came from cache.
func SetCacheHit(c *gin.Context, hit bool) {
	Meta(c)["cache_hit"] = hit
}

// Meta returns the request metadata, creating it when WithResponseMeta is not installed.
// The start time is replaced by the elapsed processing time.
func Meta(c *gin.Context) ResponseMeta {
	if value, ok := c.Get(responseMetaKey); ok {
		if meta, ok := value.(ResponseMeta); ok {
			if started, ok := meta["started_at"].(time.Time); ok {
				delete(meta, "started_at")
				meta["processing_time_ms"] = time.Since(started).Milliseconds()
			}
			return meta
		}
	}
	meta := ResponseMeta{}
	c.Set(responseMetaKey, meta)
	return meta
}
