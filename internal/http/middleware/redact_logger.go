// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger and the scrubber behind it. Bodies are
// never logged; query strings and request headers are, after removing what
// shoppers tend to paste into them: e-mail addresses, phone numbers, card
// numbers and UUID-shaped identifiers. Credential headers are masked whole.
package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

// RedactOptions configures RedactingLogger.
type RedactOptions struct {
	// MaskHeaders are extra header names (case-insensitive) whose values are
	// replaced by "[REDACTED]", on top of Authorization, Cookie, Set-Cookie
	// and X-Api-Key.
	MaskHeaders []string
}

// RedactingLogger is Logger with scrubbed query strings and scrubbed request
// headers in each line.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	return accessLog(newScrubber(opts.MaskHeaders))
}

// Patterns run in order: UUIDs before card and phone numbers, whose digit
// runs would otherwise eat UUID segments, and cards before phones.
var (
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	cardRE  = regexp.MustCompile(`\b(?:\d[ -]?){12,18}\d\b`)
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

var defaultMaskedHeaders = []string{"Authorization", "Cookie", "Set-Cookie", "X-Api-Key"}

type scrubber struct {
	masked map[string]struct{}
}

func newScrubber(extra []string) *scrubber {
	s := &scrubber{masked: make(map[string]struct{})}
	for _, h := range append(append([]string(nil), defaultMaskedHeaders...), extra...) {
		if h = strings.TrimSpace(h); h != "" {
			s.masked[http.CanonicalHeaderKey(h)] = struct{}{}
		}
	}
	return s
}

func (s *scrubber) scrub(v string) string {
	if v == "" {
		return v
	}
	v = uuidRE.ReplaceAllString(v, "[REDACTED:id]")
	v = emailRE.ReplaceAllString(v, "[REDACTED:email]")
	v = cardRE.ReplaceAllString(v, "[REDACTED:card]")
	return phoneRE.ReplaceAllString(v, "[REDACTED:phone]")
}

// headers flattens h into a loggable map with masked and scrubbed values.
func (s *scrubber) headers(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vv := range h {
		if _, ok := s.masked[http.CanonicalHeaderKey(k)]; ok {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = s.scrub(strings.Join(vv, ", "))
	}
	return out
}
