// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file holds the request correlation and access logging chain:
// RequestID, the access loggers (Logger and RedactingLogger share one
// implementation) and Recovery. Install them in that order so panics are
// logged with the request id and session.
//
// Every access logger attaches a request-scoped zerolog.Logger to both the
// Gin context (LoggerFrom) and the request context (log.Ctx), carrying the
// request id and shopping session.
package middleware

import (
	"net/http"
	"regexp"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDKey      = "requestID"
	requestIDHeader   = "X-Request-ID"
	loggerKey         = "logger"
	maxQueryLogLength = 2048
)

// Client-supplied request ids end up in logs and response headers, so only
// short token-like values are accepted.
var requestIDRE = regexp.MustCompile(`^[A-Za-z0-9._\-]{1,128}$`)

// RequestID propagates a well-formed X-Request-ID or generates a UUID, then
// echoes it on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if !requestIDRE.MatchString(rid) {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// Logger writes one structured line per request with query strings and
// headers as received. Use RedactingLogger when they may carry PII.
func Logger() gin.HandlerFunc {
	return accessLog(nil)
}

// accessLog is the shared access logger. With a scrubber the query is
// redacted and request headers are logged in scrubbed form; without one
// headers are left out entirely.
func accessLog(s *scrubber) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		rid := asString(c.Value(requestIDKey))
		if rid == "" {
			rid = c.Writer.Header().Get(requestIDHeader)
		}
		sid := asString(c.Value(ctxKeySession))

		scoped := log.With().Str("request_id", rid).Str("session", sid).Logger()
		attachLogger(c, &scoped)

		query := truncate(c.Request.URL.RawQuery, maxQueryLogLength)
		var headers map[string]string
		if s != nil {
			query = s.scrub(query)
			headers = s.headers(c.Request.Header)
		}

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		status := c.Writer.Status()

		ev := levelFor(&scoped, status, len(c.Errors) > 0).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Str("remote_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Int64("bytes_in", c.Request.ContentLength).
			Int("status", status).
			Int("bytes_out", c.Writer.Size()).
			Dur("latency", time.Since(start))
		if headers != nil {
			ev = ev.Interface("headers", headers)
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}
		ev.Msg("request")
	}
}

// levelFor picks error for 5xx or handler errors, warn for 4xx, else info.
func levelFor(l *zerolog.Logger, status int, hasErrors bool) *zerolog.Event {
	switch {
	case hasErrors || status >= http.StatusInternalServerError:
		return l.Error()
	case status >= http.StatusBadRequest:
		return l.Warn()
	default:
		return l.Info()
	}
}

// Recovery turns a panic into a logged stack trace and, when nothing was
// written yet, the standard 500 error envelope.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			rid := asString(c.Value(requestIDKey))
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("request_id", rid).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Header(requestIDHeader, rid)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": rid,
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger, or the global logger when no
// access logger ran.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if lg, ok := c.Value(loggerKey).(*zerolog.Logger); ok {
		return lg
	}
	l := log.With().Logger()
	return &l
}

// attachLogger stores l in the Gin context and in the request context.
func attachLogger(c *gin.Context, l *zerolog.Logger) {
	c.Set(loggerKey, l)
	c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// truncate caps s at max bytes, appending an ellipsis. max <= 0 disables it.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
