// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file sets browser hardening headers and the storefront caching policy.
// Session resources (cart, analytics) may only be kept by the client that
// owns them and must be revalidated; catalog reads are the same for everyone
// and can sit in browser and CDN caches for a short while.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const defaultHSTSMaxAge = 180 * 24 * time.Hour

// SecurityOptions configures SecurityHeaders.
type SecurityOptions struct {
	// EnableHSTS emits Strict-Transport-Security on HTTPS requests. Only turn
	// it on when traffic is HTTPS end-to-end.
	EnableHSTS bool
	HSTSMaxAge time.Duration // defaults to 180 days

	// EnablePolicy adds Permissions-Policy and X-Permitted-Cross-Domain-Policies.
	EnablePolicy bool

	// PrivatePrefixes mark per-session routes: Cache-Control: private, no-cache
	// plus Vary on the session header, so ETag revalidation still works.
	PrivatePrefixes []string
	// PublicPrefixes mark catalog routes whose successful GET responses may be
	// cached by anyone for PublicMaxAge. A zero PublicMaxAge disables this.
	PublicPrefixes []string
	PublicMaxAge   time.Duration
}

// SecurityHeaders sets X-Content-Type-Options, X-Frame-Options and
// Referrer-Policy on every response, then applies the optional policy, HSTS
// and cache rules of opt. Public caching is decided when the status is
// written, so errors are never marked cacheable.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	hsts := opt.HSTSMaxAge
	if hsts <= 0 {
		hsts = defaultHSTSMaxAge
	}
	hstsValue := "max-age=" + strconv.Itoa(int(hsts.Seconds())) + "; includeSubDomains; preload"
	publicValue := ""
	if opt.PublicMaxAge > 0 {
		publicValue = "public, max-age=" + strconv.Itoa(int(opt.PublicMaxAge.Seconds()))
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hstsValue)
		}

		path := c.Request.URL.Path
		switch {
		case hasAnyPrefix(path, opt.PrivatePrefixes):
			h.Set("Cache-Control", "private, no-cache")
			h.Add("Vary", HeaderSessionID)
		case publicValue != "" && c.Request.Method == http.MethodGet && hasAnyPrefix(path, opt.PublicPrefixes):
			c.Writer = &publicCacheWriter{ResponseWriter: c.Writer, value: publicValue}
		}

		c.Next()
	}
}

// publicCacheWriter marks 2xx responses as publicly cacheable unless the
// handler already chose a Cache-Control value.
type publicCacheWriter struct {
	gin.ResponseWriter
	value string
}

func (w *publicCacheWriter) WriteHeader(code int) {
	if code >= 200 && code < 300 && w.Header().Get("Cache-Control") == "" {
		w.Header().Set("Cache-Control", w.value)
	}
	w.ResponseWriter.WriteHeader(code)
}

// hasAnyPrefix reports whether path equals a prefix or lies below it.
func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		p = strings.TrimSuffix(p, "/")
		if p == "" {
			continue
		}
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// isHTTPS reports whether the request arrived over TLS, directly or through
// a proxy that set X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
