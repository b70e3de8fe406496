package booking

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/frontdesk/frontdesk/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the availability and appointment endpoints. cached
// wraps the slot listing route with the response cache when one is
// configured.
func (h *Handler) RegisterRoutes(api *echo.Group, cached ...echo.MiddlewareFunc) {
	api.GET("/business/available-time-slots", h.ListSlots, cached...)
	api.POST("/business/available-time-slots", h.CheckSlot)

	api.GET("/appointments", h.List)
	api.POST("/appointments", h.Create)
	api.GET("/appointments/:id", h.Get)
	api.PUT("/appointments/:id", h.Update)
	api.DELETE("/appointments/:id", h.Delete)
	api.GET("/appointments/:id/history", h.History)
}

// httpError maps service errors onto transport codes: missing references are
// 404, rejected input 400, a lost slot race 409, anything else 500.
func httpError(err error) error {
	var inv InvalidError
	switch {
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrTypeNotFound), errors.Is(err, ErrStaffNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.As(err, &inv):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// slotQuery is shared by the GET listing and POST check endpoints.
type slotQuery struct {
	TypeID    string `json:"appointment_type_id" query:"appointment_type_id"`
	StaffID   string `json:"staff_id" query:"staff_id"`
	Date      string `json:"date" query:"date"`
	DateFrom  string `json:"date_from" query:"date_from"`
	DateTo    string `json:"date_to" query:"date_to"`
	StartTime string `json:"start_time" query:"start_time"`
	EndTime   string `json:"end_time" query:"end_time"`
}

func (q *slotQuery) request() (SlotRequest, error) {
	typeID, err := uuid.Parse(q.TypeID)
	if err != nil {
		return SlotRequest{}, errors.New("appointment_type_id is required")
	}
	req := SlotRequest{TypeID: typeID}
	if q.StaffID != "" {
		sid, err := uuid.Parse(q.StaffID)
		if err != nil {
			return SlotRequest{}, errors.New("invalid staff_id")
		}
		req.StaffID = &sid
	}

	switch {
	case q.Date != "":
		req.Dates = []string{q.Date}
	case q.DateFrom != "" && q.DateTo != "":
		from, err := time.Parse("2006-01-02", q.DateFrom)
		if err != nil {
			return SlotRequest{}, errors.New("invalid date_from")
		}
		to, err := time.Parse("2006-01-02", q.DateTo)
		if err != nil {
			return SlotRequest{}, errors.New("invalid date_to")
		}
		if to.Before(from) {
			return SlotRequest{}, errors.New("date_to is before date_from")
		}
		// Cap the range so one request cannot scan months of calendar.
		for d := from; !d.After(to) && len(req.Dates) < 31; d = d.AddDate(0, 0, 1) {
			req.Dates = append(req.Dates, d.Format("2006-01-02"))
		}
	default:
		return SlotRequest{}, errors.New("date or date_from/date_to is required")
	}
	return req, nil
}

func (h *Handler) ListSlots(c echo.Context) error {
	var q slotQuery
	if err := c.Bind(&q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req, err := q.request()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	listing, err := h.svc.ListSlots(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, listing)
}

// CheckSlot validates one candidate slot. A slot that fails policy or is
// taken comes back 200 with available=false and a reason.
func (h *Handler) CheckSlot(c echo.Context) error {
	var q slotQuery
	if err := c.Bind(&q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	typeID, err := uuid.Parse(q.TypeID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "appointment_type_id is required")
	}
	if q.Date == "" || q.StartTime == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "date and start_time are required")
	}
	req := CheckRequest{TypeID: typeID, Date: q.Date, StartTime: q.StartTime, EndTime: q.EndTime}
	if q.StaffID != "" {
		sid, err := uuid.Parse(q.StaffID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid staff_id")
		}
		req.StaffID = &sid
	}
	check, err := h.svc.CheckSlot(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, check)
}

type createRequest struct {
	CustomerID string  `json:"customer_id"`
	TypeID     string  `json:"appointment_type_id"`
	StaffID    string  `json:"staff_id"`
	Date       string  `json:"appointment_date"`
	StartTime  string  `json:"start_time"`
	Notes      *string `json:"notes"`
}

func (h *Handler) Create(c echo.Context) error {
	var body createRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	customerID, err := uuid.Parse(body.CustomerID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "customer_id is required")
	}
	typeID, err := uuid.Parse(body.TypeID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "appointment_type_id is required")
	}
	req := BookRequest{
		CustomerID: customerID,
		TypeID:     typeID,
		Date:       body.Date,
		StartTime:  body.StartTime,
		Notes:      body.Notes,
	}
	if body.StaffID != "" {
		sid, err := uuid.Parse(body.StaffID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid staff_id")
		}
		req.StaffID = &sid
	}

	appt, err := h.svc.Book(c.Request().Context(), req, c.Request().Header.Get("Idempotency-Key"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, appt)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	appt, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := ListFilter{
		DateFrom: c.QueryParam("date_from"),
		DateTo:   c.QueryParam("date_to"),
		Status:   c.QueryParam("status"),
		Limit:    pg.Limit,
		Offset:   pg.Offset,
	}
	if v := c.QueryParam("customer_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid customer_id")
		}
		f.CustomerID = &id
	}
	if v := c.QueryParam("staff_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid staff_id")
		}
		f.StaffID = &id
	}
	items, total, err := h.svc.List(c.Request().Context(), f)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type updateRequest struct {
	StaffID   *string `json:"staff_id"`
	TypeID    *string `json:"appointment_type_id"`
	Date      *string `json:"appointment_date"`
	StartTime *string `json:"start_time"`
	Status    *string `json:"status"`
	Notes     *string `json:"notes"`
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body updateRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req := UpdateRequest{
		Date:      body.Date,
		StartTime: body.StartTime,
		Status:    body.Status,
		Notes:     body.Notes,
	}
	if body.StaffID != nil {
		sid, err := uuid.Parse(*body.StaffID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid staff_id")
		}
		req.StaffID = &sid
	}
	if body.TypeID != nil {
		tid, err := uuid.Parse(*body.TypeID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment_type_id")
		}
		req.TypeID = &tid
	}

	appt, err := h.svc.Update(c.Request().Context(), id, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

type cancelRequest struct {
	CancelledBy string `json:"cancelled_by"`
	Reason      string `json:"cancellation_reason"`
}

// Delete cancels by default. hard_delete=true removes the row outright and
// is restricted to interactive cleanup.
func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	if c.QueryParam("hard_delete") == "true" {
		if err := h.svc.Delete(c.Request().Context(), id); err != nil {
			return httpError(err)
		}
		return c.NoContent(http.StatusNoContent)
	}

	var body cancelRequest
	_ = c.Bind(&body)
	appt, err := h.svc.Cancel(c.Request().Context(), id, body.CancelledBy, body.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) History(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.History(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": items})
}
