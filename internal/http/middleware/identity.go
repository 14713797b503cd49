package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderUserID carries the caller identity in this deployment. An upstream
// authenticator may set the "userID" context key instead; that value wins.
const HeaderUserID = "X-User-ID"

const maxUserIDLen = 64

// Identity stores the caller's user id under the "userID" context key so
// that logging, rate limiting, idempotency and handlers agree on it. Ids
// longer than the storage column are rejected with 400.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get("userID"); !ok {
			if uid := strings.TrimSpace(c.GetHeader(HeaderUserID)); uid != "" {
				if len(uid) > maxUserIDLen {
					abortJSON(c, http.StatusBadRequest, "bad_request", "X-User-ID too long")
					return
				}
				c.Set("userID", uid)
			}
		}
		c.Next()
	}
}

// userIDFromCtx returns the "userID" context value, or "demo-user".
func userIDFromCtx(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "demo-user"
}
