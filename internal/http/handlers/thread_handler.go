package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/orderflow-agent/internal/domain"
	"github.com/tbourn/orderflow-agent/internal/repo"
	"github.com/tbourn/orderflow-agent/internal/services"
)

// ListThreadsResponse is a page of the inbox.
type ListThreadsResponse struct {
	Threads    []domain.Thread `json:"threads"`
	Pagination services.Page   `json:"pagination"`
}

// ListMessagesResponse is a page of a thread's history.
type ListMessagesResponse struct {
	Messages   []domain.ThreadMessage `json:"messages"`
	Pagination services.Page          `json:"pagination"`
}

// threadsDB returns the store behind the thread service for ETag checks.
func (h *Handlers) threadsDB() *gorm.DB {
	if svc, ok := h.threads.(*services.ThreadService); ok {
		return svc.DB
	}
	return nil
}

// notModified sets a weak ETag and reports whether the client already has it.
func notModified(c *gin.Context, etag string) bool {
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}

// ListThreads godoc
// @ID          listThreads
// @Summary     Staff inbox
// @Description Lists a tenant's threads, most recently active first. attention=true restricts the list to threads waiting for a human. Supports weak ETags.
// @Tags        Threads
// @Produce     json
// @Param       tenant_id      query   string  true   "Tenant ID"  format(uuid)
// @Param       attention      query   bool    false  "Only threads requiring attention"
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Success     200  {object}  handlers.ListThreadsResponse
// @Success     304  {string}  string  "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /threads [get]
func (h *Handlers) ListThreads(c *gin.Context) {
	ctx := c.Request.Context()
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "tenant_id is required")
		return
	}
	attention := c.Query("attention") == "true" || c.Query("attention") == "1"
	page, pageSize := pagination(c)

	if db := h.threadsDB(); db != nil {
		f := repo.ThreadFilter{TenantID: tenantID, AttentionOnly: attention}
		if n, last, err := repo.ThreadsStats(ctx, db, f); err == nil {
			var ts int64
			if last != nil {
				ts = last.UnixNano()
			}
			if notModified(c, fmt.Sprintf(`W/"threads:%s:%t:%d:%d:%d:%d"`, tenantID, attention, page, pageSize, n, ts)) {
				return
			}
		}
	}

	items, pg, err := h.threads.Inbox(ctx, tenantID, attention, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list threads")
		return
	}
	if items == nil {
		items = []domain.Thread{}
	}
	ok(c, http.StatusOK, ListThreadsResponse{Threads: items, Pagination: pg})
}

// ListMessages godoc
// @ID          listThreadMessages
// @Summary     Conversation history
// @Description Returns a page of a thread's messages in conversation order. Supports weak ETags.
// @Tags        Threads
// @Produce     json
// @Param       id             path    string  true   "Thread ID"  format(uuid)
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Success     200  {object}  handlers.ListMessagesResponse
// @Success     304  {string}  string  "Not Modified"
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /threads/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	page, pageSize := pagination(c)

	if db := h.threadsDB(); db != nil {
		if n, last, err := repo.MessagesStats(ctx, db, id); err == nil && n > 0 {
			if notModified(c, fmt.Sprintf(`W/"messages:%s:%d:%d:%d:%d"`, id, page, pageSize, n, last.UnixNano())) {
				return
			}
		}
	}

	items, pg, err := h.threads.Messages(ctx, id, page, pageSize)
	switch {
	case errors.Is(err, services.ErrThreadNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "thread not found")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list messages")
		return
	}
	if items == nil {
		items = []domain.ThreadMessage{}
	}
	ok(c, http.StatusOK, ListMessagesResponse{Messages: items, Pagination: pg})
}

// ResolveThread godoc
// @ID          resolveThread
// @Summary     Hand a thread back to the agent
// @Description Clears requires_attention and the draft's handoff flag; the agent answers the customer's next message again.
// @Tags        Threads
// @Produce     json
// @Param       id  path  string  true  "Thread ID"  format(uuid)
// @Success     200  {object}  domain.Thread
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /threads/{id}/resolve [post]
func (h *Handlers) ResolveThread(c *gin.Context) {
	th, err := h.threads.Resolve(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, services.ErrThreadNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "thread not found")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not resolve thread")
		return
	}
	ok(c, http.StatusOK, th)
}

// CloseThread godoc
// @ID          closeThread
// @Summary     Close a thread
// @Description Ends the conversation; the customer's next message opens a new thread.
// @Tags        Threads
// @Produce     json
// @Param       id  path  string  true  "Thread ID"  format(uuid)
// @Success     200  {object}  domain.Thread
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /threads/{id}/close [post]
func (h *Handlers) CloseThread(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	err := h.threads.Close(ctx, id)
	if err == nil {
		var th *domain.Thread
		if th, err = h.threads.Get(ctx, id); err == nil {
			ok(c, http.StatusOK, th)
			return
		}
	}
	if errors.Is(err, services.ErrThreadNotFound) {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "thread not found")
		return
	}
	fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not close thread")
}
