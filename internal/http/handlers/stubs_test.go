package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/orderflow-agent/internal/channel"
	"github.com/tbourn/orderflow-agent/internal/domain"
	"github.com/tbourn/orderflow-agent/internal/services"
)

type stubIngester struct {
	mu   sync.Mutex
	msgs []channel.InboundMessage
	res  services.IngestResult
	err  error
}

func (s *stubIngester) Ingest(_ context.Context, m channel.InboundMessage) (services.IngestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, m)
	res := s.res
	if res.Status == "" && s.err == nil {
		res = services.IngestResult{Status: services.StatusSuccess, ThreadID: "th-1", MessageID: "msg-1"}
	}
	return res, s.err
}

type stubTenants struct {
	create func(services.TenantInput) (*domain.Tenant, error)
	byID   map[string]*domain.Tenant
}

func (s *stubTenants) Create(_ context.Context, in services.TenantInput) (*domain.Tenant, error) {
	return s.create(in)
}

func (s *stubTenants) Get(_ context.Context, id string) (*domain.Tenant, error) {
	if t, ok := s.byID[id]; ok {
		return t, nil
	}
	return nil, services.ErrTenantNotFound
}

type stubMenus struct {
	err      error
	tenantID string
	feed     services.MenuFeed
}

func (s *stubMenus) Replace(_ context.Context, tenantID string, feed services.MenuFeed) (int, error) {
	s.tenantID, s.feed = tenantID, feed
	if s.err != nil {
		return 0, s.err
	}
	return len(feed.Items), nil
}

type stubThreads struct {
	threads  map[string]*domain.Thread
	messages []domain.ThreadMessage
	err      error
	inbox    struct {
		tenantID  string
		attention bool
		page      int
		pageSize  int
	}
}

func (s *stubThreads) Inbox(_ context.Context, tenantID string, attention bool, page, pageSize int) ([]domain.Thread, services.Page, error) {
	s.inbox.tenantID, s.inbox.attention, s.inbox.page, s.inbox.pageSize = tenantID, attention, page, pageSize
	if s.err != nil {
		return nil, services.Page{}, s.err
	}
	var out []domain.Thread
	for _, th := range s.threads {
		out = append(out, *th)
	}
	return out, services.Page{Page: page, PageSize: pageSize, Total: int64(len(out))}, nil
}

func (s *stubThreads) Messages(_ context.Context, id string, page, pageSize int) ([]domain.ThreadMessage, services.Page, error) {
	if _, ok := s.threads[id]; !ok {
		return nil, services.Page{}, services.ErrThreadNotFound
	}
	return s.messages, services.Page{Page: page, PageSize: pageSize, Total: int64(len(s.messages))}, nil
}

func (s *stubThreads) Get(_ context.Context, id string) (*domain.Thread, error) {
	if th, ok := s.threads[id]; ok {
		return th, nil
	}
	return nil, services.ErrThreadNotFound
}

func (s *stubThreads) Resolve(ctx context.Context, id string) (*domain.Thread, error) {
	th, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	th.RequiresAttention = false
	return th, nil
}

func (s *stubThreads) Close(ctx context.Context, id string) error {
	if s.err != nil {
		return s.err
	}
	th, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	th.Status = domain.ThreadClosed
	return nil
}

type denyAll struct{ keys []string }

func (d *denyAll) Allow(key string) bool {
	d.keys = append(d.keys, key)
	return false
}

type memIdem struct {
	mu   sync.Mutex
	seen map[string]string
}

func (m *memIdem) Remember(_ context.Context, scope, key, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen == nil {
		m.seen = map[string]string{}
	}
	m.seen[scope+"|"+key] = id
	return nil
}

func do(t *testing.T, r http.Handler, method, path, contentType string, body io.Reader, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}
