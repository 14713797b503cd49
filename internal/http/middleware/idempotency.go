// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements Idempotency-Key support for writes. A key is scoped to
// the caller and to the zone the write targets, so one key reused against a
// different zone is a new request. Completed writes are recorded through an
// IdempotencyRecorder and later retries are matched through an
// IdempotencyLookup:
//   - a retry of a bodiless outcome (204) is answered directly with the
//     recorded status, so a repeated DELETE does not turn into a 404;
//   - any other retry is marked (IsReplay) and passed to the handler, which
//     must itself be idempotent;
//   - replays bypass rate limiting;
//   - reusing a key with a different method is rejected with 422.
package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header carrying the client's key.
const HeaderIdempotencyKey = "Idempotency-Key"

// HeaderIdempotentReplay marks responses served from a recorded outcome.
const HeaderIdempotentReplay = "Idempotent-Replayed"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay" // bool: true when a recorded outcome exists
	ctxKeyRateBypass = "rate.bypass" // bool: true to skip rate limiting

	maxScopePeek = 4 << 10
)

// GetIdempotencyKey returns the validated key stashed by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether this request repeats a recorded write.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyHit is a recorded outcome.
type IdempotencyHit struct {
	Method string
	Status int
}

// IdempotencyLookup returns the unexpired outcome recorded for
// (userID, scope, key), or nil. Errors do not block the request.
type IdempotencyLookup func(ctx context.Context, userID, scope, key string, now time.Time) (*IdempotencyHit, error)

// IdempotencyRecorder stores the outcome of a completed write.
type IdempotencyRecorder func(ctx context.Context, userID, scope, key, method string, status int) error

// IdempotencyOptions configures IdempotencyValidator.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters. Default: ^[A-Za-z0-9._~\-:]+$
	Pattern *regexp.Regexp
	// Scope derives the record scope from the request. Default: ZoneScope.
	Scope func(*gin.Context) string
}

// ZoneScope returns the zone a write targets: the zone_id query parameter,
// else the zoneId member of a JSON body. The body is restored for the handler.
func ZoneScope(c *gin.Context) string {
	if z := strings.TrimSpace(c.Query("zone_id")); z != "" {
		return z
	}
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return ""
	}
	head, err := io.ReadAll(io.LimitReader(c.Request.Body, maxScopePeek))
	c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(head), c.Request.Body))
	if err != nil {
		return ""
	}
	var body struct {
		ZoneID string `json:"zoneId"`
	}
	if json.Unmarshal(head, &body) != nil {
		return ""
	}
	return strings.TrimSpace(body.ZoneID)
}

// IdempotencyValidator validates the Idempotency-Key header on writes,
// replays recorded outcomes, and records new successful ones.
//
// Behavior:
//   - Safe methods and requests without the header pass through untouched.
//   - An invalid key is rejected with 400.
//   - A lookup hit marks the request as a replay (see package doc).
//   - After the handler, a 2xx outcome of a non-replayed write is recorded.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup, record IdempotencyRecorder) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)
	}
	scopeOf := opts.Scope
	if scopeOf == nil {
		scopeOf = ZoneScope
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" || !isWrite(c.Request.Method) {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			abortJSON(c, http.StatusBadRequest, "bad_idempotency_key", "invalid Idempotency-Key")
			return
		}
		c.Set(ctxKeyIdemKey, key)

		uid := userIDFromCtx(c)
		scope := scopeOf(c)
		method := c.Request.Method
		ctx := c.Request.Context()

		if lookup != nil && scope != "" {
			hit, err := lookup(ctx, uid, scope, key, time.Now().UTC())
			if err != nil {
				LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
			}
			if hit != nil {
				if hit.Method != method {
					abortJSON(c, http.StatusUnprocessableEntity, "idempotency_key_reused",
						"Idempotency-Key was already used for a different request")
					return
				}
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
				if hit.Status == http.StatusNoContent {
					c.Header(HeaderIdempotentReplay, "true")
					c.AbortWithStatus(hit.Status)
					return
				}
			}
		}

		c.Next()

		status := c.Writer.Status()
		if record == nil || scope == "" || IsReplay(c) || status < 200 || status >= 300 {
			return
		}
		if err := record(context.WithoutCancel(ctx), uid, scope, key, method, status); err != nil {
			LoggerFrom(c).Warn().Err(err).Str("scope", scope).Msg("idempotency record failed")
		}
	}
}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// abortJSON aborts with the canonical error envelope.
func abortJSON(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success":    false,
		"message":    msg,
		"code":       code,
		"request_id": c.Writer.Header().Get(requestIDHeader),
	})
}
