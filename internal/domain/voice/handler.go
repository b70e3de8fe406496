package voice

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/frontdesk/frontdesk/internal/domain/customer"
	"github.com/frontdesk/frontdesk/internal/platform/db"
	"github.com/frontdesk/frontdesk/internal/platform/outbox"
	"github.com/frontdesk/frontdesk/internal/platform/webhook"
)

// EventQueue is the slice of the outbox used here: enqueue without a
// surrounding domain transaction.
type EventQueue interface {
	Enqueue(ctx context.Context, tenant, eventType string, payload interface{}) error
}

// Handler receives inbound webhooks from the voice agent platform. The
// route is public; authenticity comes from the HMAC signature header.
type Handler struct {
	secret    string
	customers *customer.Service
	events    EventQueue
	logger    zerolog.Logger
}

func NewHandler(secret string, customers *customer.Service, events EventQueue, logger zerolog.Logger) *Handler {
	return &Handler{
		secret:    secret,
		customers: customers,
		events:    events,
		logger:    logger.With().Str("component", "voice").Logger(),
	}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/webhooks/voice", h.Receive)
}

func (h *Handler) Receive(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read body")
	}

	if h.secret != "" {
		sig := c.Request().Header.Get("X-Webhook-Signature")
		if sig == "" || !webhook.VerifySignature(body, h.secret, sig) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid signature")
		}
	}

	var ev CallEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	ctx := c.Request().Context()
	log := h.logger.With().Str("call_id", ev.Call.ID).Str("event", ev.Event).Logger()

	switch ev.Event {
	case EventCallStarted:
		// Nothing to persist yet; acknowledge so the platform keeps the call up.
		log.Info().Str("from", ev.Call.FromNumber).Msg("call started")
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})

	case EventCallEnded, EventCallAnalyzed:
		record := CallRecord{
			CallID: ev.Call.ID,
			Phone:  ev.Call.FromNumber,
			Event:  ev.Event,
		}
		if ev.Event == EventCallAnalyzed {
			record.Transcript = ev.Call.Transcript
			if ev.Analysis != nil {
				record.Summary = ev.Analysis.Summary
				record.Sentiment = ev.Analysis.UserSentiment
				ok := ev.Analysis.Successful
				record.Successful = &ok
			}
		}

		if ev.Call.FromNumber != "" {
			cust, err := h.customers.FindOrCreateByPhone(ctx, ev.Call.FromNumber, "")
			if err != nil {
				log.Error().Err(err).Msg("find or create caller")
			} else {
				record.CustomerID = cust.ID.String()
			}
		}

		tenant := db.TenantFromContext(ctx)
		if err := h.events.Enqueue(ctx, tenant, outbox.EventCallRecorded, record); err != nil {
			log.Error().Err(err).Msg("enqueue call record")
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to record call")
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})

	default:
		log.Warn().Msg("unknown voice event")
		return c.JSON(http.StatusOK, map[string]string{"status": "ignored"})
	}
}
