package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func idemRouter(lookup IdempotencyLookup, got *struct{ key, replay string }) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Idempotency(IdempotencyOptions{MaxLen: 16}, lookup))
	h := func(c *gin.Context) {
		got.key, _ = GetIdempotencyKey(c)
		got.replay, _ = ReplayOf(c)
		c.Status(http.StatusNoContent)
	}
	r.POST("/tenants", h)
	r.PUT("/tenants/:id/menu", h)
	r.GET("/threads", h)
	return r
}

func TestIdempotency_ScopesAndReplays(t *testing.T) {
	var scopes []string
	lookup := func(_ context.Context, scope, key string, _ time.Time) (string, error) {
		scopes = append(scopes, scope)
		if key == "seen" {
			return "tenant-1", nil
		}
		return "", nil
	}
	var got struct{ key, replay string }
	r := idemRouter(lookup, &got)

	send := func(method, path, key string) int {
		req := httptest.NewRequest(method, path, nil)
		if key != "" {
			req.Header.Set(HeaderIdempotencyKey, key)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	if send(http.MethodPost, "/tenants", "fresh") != http.StatusNoContent || got.key != "fresh" || got.replay != "" {
		t.Fatalf("fresh key: %+v", got)
	}
	send(http.MethodPost, "/tenants", "seen")
	if got.replay != "tenant-1" {
		t.Fatalf("replay should carry the earlier resource: %+v", got)
	}
	send(http.MethodPut, "/tenants/t9/menu", "k")
	if scopes[len(scopes)-1] != "PUT /tenants/:id/menu#t9" {
		t.Fatalf("scope = %q", scopes[len(scopes)-1])
	}

	n := len(scopes)
	send(http.MethodGet, "/threads", "k")
	send(http.MethodPost, "/tenants", "")
	if len(scopes) != n {
		t.Fatalf("GET and keyless requests skip the lookup")
	}
}

func TestIdempotency_RejectsBadKeys(t *testing.T) {
	var got struct{ key, replay string }
	r := idemRouter(nil, &got)
	for _, key := range []string{"has space", strings.Repeat("k", 17), "semi;colon"} {
		req := httptest.NewRequest(http.MethodPost, "/tenants", nil)
		req.Header.Set(HeaderIdempotencyKey, key)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "Idempotency-Key") {
			t.Fatalf("%q: status %d body %s", key, w.Code, w.Body.String())
		}
	}
}

func TestIdempotency_LookupErrorDoesNotBlock(t *testing.T) {
	withCapturedLogger(t)
	var got struct{ key, replay string }
	r := idemRouter(func(context.Context, string, string, time.Time) (string, error) {
		return "", errors.New("db down")
	}, &got)
	req := httptest.NewRequest(http.MethodPost, "/tenants", nil)
	req.Header.Set(HeaderIdempotencyKey, "k1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent || got.replay != "" {
		t.Fatalf("status %d replay %q", w.Code, got.replay)
	}
}
