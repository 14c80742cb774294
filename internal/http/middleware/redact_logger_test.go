package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func withCapturedLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)
	return &buf
}

func TestRedact(t *testing.T) {
	cases := map[string]string{
		"call +4512345678 now":                    "call [phone] now",
		"0045 12 34 56 78":                        "[phone]",
		"mail ole@example.dk":                     "mail [email]",
		"id 141add05-4415-4938-b5a1-17e0d3171aff": "id [id]",
		"2 pizzaer":                               "2 pizzaer",
	}
	for in, want := range cases {
		if got := Redact(in); got != want {
			t.Fatalf("Redact(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRedactingLogger_MasksSendersAndBodies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := withCapturedLogger(t)

	r := gin.New()
	r.Use(RequestID(), RedactingLogger(RedactOptions{MaskHeaders: []string{"X-Gateway-Token"}}))
	r.POST("/webhooks/sms", func(c *gin.Context) {
		LoggerFrom(c).Info().Msg("inside")
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/sms?msisdn=4512345678&text=en+pizza&page=2", strings.NewReader(`{"text":"secret order"}`))
	req.Header.Set("X-Gateway-Token", "gw-secret-1")
	req.Header.Set("X-Hub-Signature-256", "sha256=abc")
	req.Header.Set("X-Forwarded-For", "10.0.0.1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	for _, leak := range []string{"4512345678", "en+pizza", "secret order", "gw-secret-1", "sha256=abc"} {
		if strings.Contains(out, leak) {
			t.Fatalf("log leaks %q: %s", leak, out)
		}
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("want scoped line + access line, got %d", len(lines))
	}
	var access map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &access); err != nil {
		t.Fatalf("access line: %v", err)
	}
	if access["path"] != "/webhooks/sms" || access["status"] != float64(200) || access["level"] != "info" {
		t.Fatalf("access = %+v", access)
	}
	if q := access["query"].(string); q != "msisdn=[redacted]&text=[redacted]&page=2" {
		t.Fatalf("query = %q", q)
	}
	var scoped map[string]any
	_ = json.Unmarshal([]byte(lines[0]), &scoped)
	if scoped["request_id"] == "" || scoped["request_id"] != access["request_id"] {
		t.Fatalf("scoped logger should carry the request id: %+v", scoped)
	}
}

func TestRedactingLogger_LevelByStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := withCapturedLogger(t)
	r := gin.New()
	r.Use(RedactingLogger(RedactOptions{}))
	r.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	r.GET("/err", func(c *gin.Context) { c.Status(http.StatusBadGateway) })

	for path, level := range map[string]string{"/bad": "warn", "/err": "error"} {
		buf.Reset()
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
		if !strings.Contains(buf.String(), `"level":"`+level+`"`) {
			t.Fatalf("%s: want level %s in %s", path, level, buf.String())
		}
	}
}
