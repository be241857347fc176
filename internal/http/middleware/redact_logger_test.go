package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestScrubber_Scrub(t *testing.T) {
	s := newScrubber(nil)
	cases := []struct{ in, want string }{
		{"", ""},
		{"q=dice+set", "q=dice+set"},
		{"email=a.b+tag@example.com", "email=[REDACTED:email]"},
		{"id=123e4567-e89b-12d3-a456-426614174000", "id=[REDACTED:id]"},
		{"card=4111 1111 1111 1111", "card=[REDACTED:card]"},
		{"card=4111-1111-1111-1111&x=1", "card=[REDACTED:card]&x=1"},
		{"phone 555-123-4567", "phone [REDACTED:phone]"},
		{"order 1234 for a@b.io", "order 1234 for [REDACTED:email]"},
		{"id=123e4567-e89b-12d3-a456-426614174000 555-123-4567", "id=[REDACTED:id] [REDACTED:phone]"},
	}
	for _, tc := range cases {
		if got := s.scrub(tc.in); got != tc.want {
			t.Errorf("scrub(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestScrubber_Headers(t *testing.T) {
	s := newScrubber([]string{" idempotency-key ", ""})
	h := http.Header{}
	h.Set("Authorization", "Bearer secret")
	h.Set("Cookie", "sid=1")
	h.Set("X-Api-Key", "k")
	h.Set("Idempotency-Key", "add-1")
	h.Add("X-Note", "call 555-123-4567")
	h.Add("X-Note", "or mail me@shop.io")

	got := s.headers(h)
	for _, k := range []string{"Authorization", "Cookie", "X-Api-Key", "Idempotency-Key"} {
		if got[k] != "[REDACTED]" {
			t.Fatalf("%s = %q", k, got[k])
		}
	}
	if want := "call [REDACTED:phone], or mail [REDACTED:email]"; got["X-Note"] != want {
		t.Fatalf("X-Note = %q, want %q", got["X-Note"], want)
	}
}

func TestRedactingLogger_LogsScrubbedRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Session(), RedactingLogger(RedactOptions{MaskHeaders: []string{HeaderIdempotencyKey}}))
	r.POST("/cart/items", func(c *gin.Context) { c.Status(http.StatusCreated) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusBadGateway) })

	req := httptest.NewRequest(http.MethodPost, "/cart/items?email=a@b.com", strings.NewReader("{}"))
	req.Header.Set(HeaderSessionID, "s-red")
	req.Header.Set(HeaderIdempotencyKey, "add-1")
	req.Header.Set("X-Request-ID", "rid-red")
	r.ServeHTTP(httptest.NewRecorder(), req)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	lines := logLines(t, buf, "request")
	if len(lines) != 2 {
		t.Fatalf("want 2 lines:\n%s", buf.String())
	}
	line := lines[0]
	if line["level"] != "info" || line["request_id"] != "rid-red" || line["session"] != "s-red" ||
		line["query"] != "email=[REDACTED:email]" || line["bytes_in"] != float64(2) {
		t.Fatalf("line = %v", line)
	}
	headers, _ := line["headers"].(map[string]any)
	if headers[HeaderIdempotencyKey] != "[REDACTED]" || headers[HeaderSessionID] != "s-red" {
		t.Fatalf("headers = %v", headers)
	}
	if lines[1]["level"] != "error" {
		t.Fatalf("5xx line = %v", lines[1])
	}
}
