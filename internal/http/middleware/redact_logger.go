// Package middleware – RedactingLogger
//
// Structured zerolog access log. Ids, e-mail addresses and phone numbers are
// masked in paths and query strings, and sender and body parameters are
// masked by key.

package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// maxQueryLogLength caps the logged query string.
const maxQueryLogLength = 1024

var (
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// Matches +4512345678, 0045 12 34 56 78, 12345678 and similar.
	phoneRE = regexp.MustCompile(`(?:\+|\b00)?\d[\d .\-]{6,}\d\b`)
)

// sensitiveParams are query keys whose values are always masked: sender
// numbers and message bodies of the SMS shapes, and Meta's verify token.
var sensitiveParams = map[string]struct{}{
	"msisdn":           {},
	"from":             {},
	"originator":       {},
	"phone":            {},
	"text":             {},
	"body":             {},
	"message":          {},
	"hub.verify_token": {},
}

// RedactOptions lists extra headers to mask entirely.
type RedactOptions struct {
	MaskHeaders []string
}

// Redact masks ids, e-mail addresses and phone numbers in s. UUIDs are
// replaced first so the phone pattern cannot eat their digit runs.
func Redact(s string) string {
	if s == "" {
		return s
	}
	s = uuidRE.ReplaceAllString(s, "[id]")
	s = emailRE.ReplaceAllString(s, "[email]")
	return phoneRE.ReplaceAllString(s, "[phone]")
}

// redactQuery masks sensitive parameters by key and scrubs the rest.
func redactQuery(raw string) string {
	if raw == "" {
		return ""
	}
	parts := strings.Split(raw, "&")
	for i, p := range parts {
		k, _, found := strings.Cut(p, "=")
		if !found {
			continue
		}
		if _, ok := sensitiveParams[strings.ToLower(k)]; ok {
			parts[i] = k + "=[redacted]"
			continue
		}
		parts[i] = Redact(p)
	}
	return truncate(strings.Join(parts, "&"), maxQueryLogLength)
}

// RedactingLogger writes one access log line per request. Bodies are never
// logged, since they carry customer phone numbers and order text. It also
// attaches a request-scoped logger (see LoggerFrom).
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	masked := map[string]struct{}{
		"authorization":       {},
		"cookie":              {},
		"set-cookie":          {},
		"x-hub-signature":     {},
		"x-hub-signature-256": {},
		"x-twilio-signature":  {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			masked[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		l := log.With().
			Str("request_id", GetRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Logger()
		c.Set(loggerKey, &l)

		headers := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := masked[strings.ToLower(k)]; ok {
				headers[k] = "[redacted]"
				continue
			}
			headers[k] = Redact(strings.Join(vv, ", "))
		}

		c.Next()

		status := c.Writer.Status()
		ev := l.Info()
		switch {
		case status >= 500 || len(c.Errors) > 0:
			ev = l.Error()
		case status >= 400:
			ev = l.Warn()
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", Redact(c.Errors.String()))
		}
		ev.
			Str("query", redactQuery(c.Request.URL.RawQuery)).
			Str("remote_ip", c.ClientIP()).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", headers).
			Msg("http_request")
	}
}
