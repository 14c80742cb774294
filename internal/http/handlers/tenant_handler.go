package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/orderflow-agent/internal/http/middleware"
	"github.com/tbourn/orderflow-agent/internal/services"
)

// MenuResponse reports a catalog replacement.
type MenuResponse struct {
	TenantID string `json:"tenant_id" example:"0d1f3c52-2b7e-4d8e-9b7a-6f3f2b7c1a11"`
	Items    int    `json:"items" example:"42"`
}

// CreateTenant godoc
// @ID          createTenant
// @Summary     Register a restaurant
// @Description Creates a tenant with its receiving addresses (SMS numbers or short codes, page ids). Phone-like SMS addresses are normalized. Supports Idempotency-Key.
// @Tags        Tenants
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key  header  string                 false  "Retry-safe key"
// @Param       body             body    services.TenantInput  true   "Tenant"
// @Success     201  {object}  domain.Tenant
// @Success     200  {object}  domain.Tenant  "Replayed request"
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse  "Address already taken"
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /tenants [post]
func (h *Handlers) CreateTenant(c *gin.Context) {
	ctx := c.Request.Context()
	if id, replay := middleware.ReplayOf(c); replay {
		if t, err := h.tenants.Get(ctx, id); err == nil {
			ok(c, http.StatusOK, t)
			return
		}
	}

	var in services.TenantInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	t, err := h.tenants.Create(ctx, in)
	switch {
	case errors.Is(err, services.ErrInvalidTenant):
		fail(c, http.StatusBadRequest, ErrCodeInvalidTenant, err.Error())
		return
	case errors.Is(err, services.ErrAddressTaken):
		fail(c, http.StatusConflict, ErrCodeAddressTaken, err.Error())
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not create tenant")
		return
	}

	if key, has := middleware.GetIdempotencyKey(c); has && h.idem != nil {
		if err := h.idem.Remember(ctx, middleware.IdempotencyScope(c), key, t.ID); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("remember idempotency key")
		}
	}
	ok(c, http.StatusCreated, t)
}

// ReplaceMenu godoc
// @ID          replaceMenu
// @Summary     Replace a tenant's menu
// @Description Validates the catalog feed and swaps the stored menu for it. Items default to available.
// @Tags        Tenants
// @Accept      json
// @Produce     json
// @Param       id    path  string             true  "Tenant ID"  format(uuid)
// @Param       body  body  services.MenuFeed  true  "Catalog feed"
// @Success     200  {object}  handlers.MenuResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /tenants/{id}/menu [put]
func (h *Handlers) ReplaceMenu(c *gin.Context) {
	tenantID := c.Param("id")
	var feed services.MenuFeed
	if err := c.ShouldBindJSON(&feed); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	n, err := h.menus.Replace(c.Request.Context(), tenantID, feed)
	switch {
	case errors.Is(err, services.ErrInvalidMenu):
		fail(c, http.StatusBadRequest, ErrCodeInvalidMenu, err.Error())
		return
	case errors.Is(err, services.ErrTenantNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "tenant not found")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not store menu")
		return
	}
	ok(c, http.StatusOK, MenuResponse{TenantID: tenantID, Items: n})
}
