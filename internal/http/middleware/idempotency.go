// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file handles Idempotency-Key on cart writes. Shoppers double-click
// "add to cart" and mobile clients retry on flaky networks; a key lets the
// server recognize the second attempt. The middleware only validates the
// header and asks a lookup whether the key was already used by the session.
// Claiming a key is left to the handler, which knows when the write happened.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	// HeaderIdempotencyKey carries the client-chosen key of a write.
	HeaderIdempotencyKey = "Idempotency-Key"
	// HeaderIdempotentReplay is set to "true" on responses to a reused key.
	HeaderIdempotentReplay = "Idempotent-Replay"

	defaultIdempotencyKeyLen = 200

	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

var defaultIdempotencyKeyRE = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// IdempotencyOptions configures IdempotencyValidator.
type IdempotencyOptions struct {
	// MaxLen caps the key length. Defaults to 200.
	MaxLen int
	// Pattern restricts key characters. Defaults to ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
}

// IdempotencyLookup reports whether session already used key and the record
// is still live at now. Errors are logged and treated as "not used".
type IdempotencyLookup func(ctx context.Context, session, key string, now time.Time) (used bool, err error)

// GetIdempotencyKey returns the key validated by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	s, _ := c.Value(ctxKeyIdemKey).(string)
	return s, s != ""
}

// IsReplay reports whether the request reuses a key the session already spent.
func IsReplay(c *gin.Context) bool {
	b, _ := c.Value(ctxKeyIdemReplay).(bool)
	return b
}

// MarkReplay flags the request as a replay: handlers skip the write, the
// limiter lets it through and the response carries Idempotent-Replay.
func MarkReplay(c *gin.Context) {
	c.Set(ctxKeyIdemReplay, true)
	c.Set(ctxKeyRateBypass, true)
	c.Header(HeaderIdempotentReplay, "true")
}

// IdempotencyValidator checks Idempotency-Key on POST, PATCH and DELETE.
// Reads ignore the header. A malformed key is rejected with 400
// bad_idempotency_key; a key the lookup already knows marks a replay.
// lookup may be nil, leaving replay detection to the handler.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = defaultIdempotencyKeyLen
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultIdempotencyKeyRE
	}

	return func(c *gin.Context) {
		if !isWrite(c.Request.Method) {
			c.Next()
			return
		}
		key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_idempotency_key",
				"message":    "invalid " + HeaderIdempotencyKey,
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			used, err := lookup(c.Request.Context(), SessionFrom(c), key, time.Now().UTC())
			switch {
			case err != nil:
				LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
			case used:
				MarkReplay(c)
			}
		}
		c.Next()
	}
}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodPut:
		return true
	}
	return false
}
