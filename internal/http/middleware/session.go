// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the shopping session of a request. The storefront has no
// accounts: a client names its cart with an opaque X-Session-ID header. A
// request without one is issued a fresh session, echoed in the response
// header so the client can keep using it.
package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// HeaderSessionID carries the client's session identifier.
	HeaderSessionID = "X-Session-ID"
	// GuestSession is reported by SessionFrom when Session did not run.
	GuestSession = "guest"

	ctxKeySession       = "sessionID"
	ctxKeySessionIssued = "sessionIssued"
)

var sessionRE = regexp.MustCompile(`^[A-Za-z0-9._~\-:]{1,128}$`)

// Session validates X-Session-ID and stores the session in the Gin context.
// A malformed header is rejected with 400; a missing one gets a new session.
// The resolved session is always echoed in the X-Session-ID response header.
func Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		sid := strings.TrimSpace(c.GetHeader(HeaderSessionID))
		switch {
		case sid == "":
			sid = uuid.NewString()
			c.Set(ctxKeySessionIssued, true)
		case !sessionRE.MatchString(sid):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_session",
				"message":    "invalid " + HeaderSessionID,
			})
			return
		}
		c.Set(ctxKeySession, sid)
		c.Header(HeaderSessionID, sid)
		c.Next()
	}
}

// SessionFrom returns the session stored by Session, or GuestSession.
func SessionFrom(c *gin.Context) string {
	if v, ok := c.Get(ctxKeySession); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return GuestSession
}

// SessionIssued reports whether Session minted the session for this request
// rather than reading it from the client.
func SessionIssued(c *gin.Context) bool {
	return c.GetBool(ctxKeySessionIssued)
}
