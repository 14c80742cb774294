package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey lets admin clients retry writes safely.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
)

var defaultKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// IdempotencyOptions configures key validation.
type IdempotencyOptions struct {
	// MaxLen caps the key length (default 200).
	MaxLen int
	// Pattern restricts key characters (default token characters).
	Pattern *regexp.Regexp
}

// IdempotencyLookup returns the id of the resource a previous request with
// the same scope and key produced, or "" when there was none. Lookup errors
// do not block the request.
type IdempotencyLookup func(ctx context.Context, scope, key string, now time.Time) (resourceID string, err error)

// IdempotencyScope names the operation a key belongs to: the route template
// plus the :id path parameter, so the same key may be reused across routes.
func IdempotencyScope(c *gin.Context) string {
	scope := c.FullPath()
	if scope == "" {
		scope = c.Request.URL.Path
	}
	if id := c.Param("id"); id != "" {
		scope += "#" + id
	}
	return c.Request.Method + " " + scope
}

// Idempotency validates Idempotency-Key on POST and PUT requests and, when
// lookup finds an earlier result, records its resource id for the handler
// (see ReplayOf). Requests without the header pass through untouched.
func Idempotency(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultKeyPattern
	}

	return func(c *gin.Context) {
		if m := c.Request.Method; m != http.MethodPost && m != http.MethodPut {
			c.Next()
			return
		}
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": GetRequestID(c),
				"code":       "bad_request",
				"message":    "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			id, err := lookup(c.Request.Context(), IdempotencyScope(c), key, time.Now().UTC())
			if err != nil {
				LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
			} else if id != "" {
				c.Set(ctxKeyIdemReplay, id)
			}
		}
		c.Next()
	}
}

// GetIdempotencyKey returns the validated key of this request.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, _ := c.Get(ctxKeyIdemKey)
	s, _ := v.(string)
	return s, s != ""
}

// ReplayOf returns the resource id recorded for a replayed request.
func ReplayOf(c *gin.Context) (string, bool) {
	v, _ := c.Get(ctxKeyIdemReplay)
	s, _ := v.(string)
	return s, s != ""
}
