// Package handlers implements the storefront's public HTTP endpoints.
//
// Every error leaves through fail, which writes ErrorResponse with a stable
// code from errors.go:
//
//	HTTP/1.1 400 Bad Request
//	{"request_id": "5c1f…", "code": "invalid_quantity", "message": "quantity must be between 1 and 10"}
package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/talesofaneria/storefront/internal/http/middleware"
)

// ErrorResponse is the error envelope of every endpoint.
type ErrorResponse struct {
	// Echo of X-Request-ID, for matching a client report to server logs
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go)
	Code string `json:"code" example:"invalid_item"`
	// Human-readable message, safe to show to shoppers
	Message string `json:"message" example:"productId and variantId are required"`
}

// fail aborts with status and the error envelope.
func fail(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail lets the router answer NoRoute/NoMethod with the same envelope.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failInternal logs err with the request logger and answers a generic 500;
// internals never reach the client.
func failInternal(c *gin.Context, err error) {
	middleware.LoggerFrom(c).Error().Err(err).Str("route", c.FullPath()).Msg("request failed")
	fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// notModified sets ETag and reports whether the request's If-None-Match
// already names it, in which case it has answered 304. Comparison is weak
// (W/ prefixes ignored) and "*" matches anything.
func notModified(c *gin.Context, etag string) bool {
	c.Header("ETag", etag)
	inm := c.GetHeader("If-None-Match")
	if inm == "" {
		return false
	}
	want := strings.TrimPrefix(etag, "W/")
	for _, tag := range strings.Split(inm, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "*" || strings.TrimPrefix(tag, "W/") == want {
			c.Status(http.StatusNotModified)
			return true
		}
	}
	return false
}

// queryInt parses query parameter name, clamped to [lo, hi]. Missing or
// malformed values give def.
func queryInt(c *gin.Context, name string, def, lo, hi int) int {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return min(max(n, lo), hi)
}
