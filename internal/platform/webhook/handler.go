package webhook

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/frontdesk/frontdesk/internal/platform/db"
	"github.com/frontdesk/frontdesk/pkg/pagination"
)

// Handler exposes endpoint management and the delivery log over HTTP. All
// routes are scoped to the tenant resolved by the middleware.
type Handler struct {
	manager *Manager
}

func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.remove)
	g.POST("/:id/ping", h.ping)
	g.GET("/:id/deliveries", h.deliveries)
	g.POST("/deliveries/:id/redeliver", h.redeliver)
}

func tenantID(c echo.Context) string {
	t, _ := c.Get("tenant_id").(string)
	return t
}

type createEndpointRequest struct {
	URL    string   `json:"url"`
	Secret string   `json:"secret"`
	Events []string `json:"events"`
}

// create registers an endpoint. The secret appears in this response only;
// reads never return it.
func (h *Handler) create(c echo.Context) error {
	var req createEndpointRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ep, err := h.manager.Register(c.Request().Context(), tenantID(c), req.URL, req.Secret, req.Events)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, ep)
}

func (h *Handler) list(c echo.Context) error {
	pg := pagination.FromContext(c)
	eps, total, err := h.manager.store.Endpoints(c.Request().Context(), tenantID(c), pg)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	for _, ep := range eps {
		ep.Secret = ""
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(eps, total, pg.Limit, pg.Offset))
}

func (h *Handler) get(c echo.Context) error {
	ep, err := h.endpoint(c)
	if err != nil {
		return err
	}
	ep.Secret = ""
	return c.JSON(http.StatusOK, ep)
}

type updateEndpointRequest struct {
	URL     string   `json:"url"`
	Events  []string `json:"events"`
	Enabled *bool    `json:"enabled"`
}

func (h *Handler) update(c echo.Context) error {
	ep, err := h.endpoint(c)
	if err != nil {
		return err
	}
	var req updateEndpointRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.URL != "" {
		if err := validateURL(req.URL); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		ep.URL = req.URL
	}
	if len(req.Events) > 0 {
		ep.Events = req.Events
	}
	if req.Enabled != nil {
		ep.Enabled = *req.Enabled
	}
	if err := h.manager.store.UpdateEndpoint(c.Request().Context(), ep); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	ep.Secret = ""
	return c.JSON(http.StatusOK, ep)
}

func (h *Handler) remove(c echo.Context) error {
	if _, err := h.endpoint(c); err != nil {
		return err
	}
	if err := h.manager.store.DeleteEndpoint(c.Request().Context(), c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ping(c echo.Context) error {
	if _, err := h.endpoint(c); err != nil {
		return err
	}
	d, err := h.manager.Ping(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) deliveries(c echo.Context) error {
	if _, err := h.endpoint(c); err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	log, total, err := h.manager.store.Deliveries(c.Request().Context(), c.Param("id"), pg)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(log, total, pg.Limit, pg.Offset))
}

func (h *Handler) redeliver(c echo.Context) error {
	d, err := h.manager.Redeliver(c.Request().Context(), c.Param("id"))
	if err != nil {
		if db.IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "delivery not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, d)
}

// endpoint loads the endpoint from the path and rejects cross-tenant access.
func (h *Handler) endpoint(c echo.Context) (*Endpoint, error) {
	ep, err := h.manager.store.Endpoint(c.Request().Context(), c.Param("id"))
	if err != nil {
		if db.IsNotFound(err) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "endpoint not found")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if t := tenantID(c); t != "" && ep.TenantID != t {
		return nil, echo.NewHTTPError(http.StatusNotFound, "endpoint not found")
	}
	return ep, nil
}
