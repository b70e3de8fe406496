package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/frontdesk/frontdesk/internal/domain/customer"
	"github.com/frontdesk/frontdesk/internal/platform/webhook"
)

type queuedEvent struct {
	tenant    string
	eventType string
	payload   interface{}
}

type mockQueue struct {
	events []queuedEvent
	fail   bool
}

func (m *mockQueue) Enqueue(_ context.Context, tenant, eventType string, payload interface{}) error {
	if m.fail {
		return fmt.Errorf("queue unavailable")
	}
	m.events = append(m.events, queuedEvent{tenant: tenant, eventType: eventType, payload: payload})
	return nil
}

type mockCustomerRepo struct {
	customers map[string]*customer.Customer
	creates   int
}

func (m *mockCustomerRepo) Create(_ context.Context, c *customer.Customer) error {
	c.ID = uuid.New()
	if c.Phone != nil {
		m.customers[*c.Phone] = c
	}
	m.creates++
	return nil
}

func (m *mockCustomerRepo) GetByID(_ context.Context, id uuid.UUID) (*customer.Customer, error) {
	for _, c := range m.customers {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func (m *mockCustomerRepo) GetByPhone(_ context.Context, phone string) (*customer.Customer, error) {
	c, ok := m.customers[phone]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return c, nil
}

func (m *mockCustomerRepo) Update(_ context.Context, c *customer.Customer) error { return nil }
func (m *mockCustomerRepo) Delete(_ context.Context, id uuid.UUID) error         { return nil }

func (m *mockCustomerRepo) Search(_ context.Context, _ string, _, _ int) ([]*customer.Customer, int, error) {
	return nil, 0, nil
}

func (m *mockCustomerRepo) BumpStats(_ context.Context, _ uuid.UUID, _, _, _, _ int, _ *time.Time) error {
	return nil
}

func newTestHandler(secret string) (*Handler, *mockQueue, *mockCustomerRepo) {
	repo := &mockCustomerRepo{customers: make(map[string]*customer.Customer)}
	queue := &mockQueue{}
	h := NewHandler(secret, customer.NewService(repo), queue, zerolog.Nop())
	return h, queue, repo
}

func post(h *Handler, body, signature string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/voice", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if signature != "" {
		req.Header.Set("X-Webhook-Signature", signature)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Receive(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestReceive_CallStarted(t *testing.T) {
	h, queue, _ := newTestHandler("")

	body := `{"event":"call_started","call":{"call_id":"c1","from_number":"+15551234567"}}`
	rec := post(h, body, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(queue.events) != 0 {
		t.Errorf("call_started should not enqueue anything")
	}
}

func TestReceive_CallAnalyzed(t *testing.T) {
	h, queue, repo := newTestHandler("")

	body := `{
		"event": "call_analyzed",
		"call": {"call_id": "c2", "from_number": "+15551234567", "transcript": "hi"},
		"call_analysis": {"call_summary": "booked a visit", "user_sentiment": "positive", "call_successful": true}
	}`
	rec := post(h, body, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	if repo.creates != 1 {
		t.Fatalf("expected a customer for the caller, creates = %d", repo.creates)
	}
	if len(queue.events) != 1 {
		t.Fatalf("events = %d, want 1", len(queue.events))
	}
	record, ok := queue.events[0].payload.(CallRecord)
	if !ok {
		t.Fatalf("payload is %T, want CallRecord", queue.events[0].payload)
	}
	if record.Summary != "booked a visit" || record.Sentiment != "positive" {
		t.Errorf("analysis not carried into record: %+v", record)
	}
	if record.Successful == nil || !*record.Successful {
		t.Errorf("successful flag not set")
	}
	if record.CustomerID == "" {
		t.Errorf("customer id not attached")
	}
}

func TestReceive_CallEnded_NoAnalysis(t *testing.T) {
	h, queue, _ := newTestHandler("")

	body := `{"event":"call_ended","call":{"call_id":"c3","from_number":"+15551234567","transcript":"hi"}}`
	rec := post(h, body, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	record := queue.events[0].payload.(CallRecord)
	if record.Transcript != "" || record.Summary != "" {
		t.Errorf("call_ended should not carry transcript or summary yet")
	}
}

func TestReceive_SignatureRequired(t *testing.T) {
	h, _, _ := newTestHandler("topsecret")
	body := `{"event":"call_started","call":{"call_id":"c4"}}`

	rec := post(h, body, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing signature: status = %d, want 401", rec.Code)
	}

	rec = post(h, body, "deadbeef")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad signature: status = %d, want 401", rec.Code)
	}

	rec = post(h, body, webhook.SignPayload([]byte(body), "topsecret"))
	if rec.Code != http.StatusOK {
		t.Errorf("valid signature: status = %d, want 200", rec.Code)
	}
}

func TestReceive_UnknownEventIgnored(t *testing.T) {
	h, queue, _ := newTestHandler("")

	rec := post(h, `{"event":"agent_ping","call":{"call_id":"c5"}}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "ignored" {
		t.Errorf("status = %q, want ignored", resp["status"])
	}
	if len(queue.events) != 0 {
		t.Errorf("unknown event should not enqueue")
	}
}

func TestReceive_InvalidPayload(t *testing.T) {
	h, _, _ := newTestHandler("")
	rec := post(h, `{not json`, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestReceive_QueueFailure(t *testing.T) {
	h, queue, _ := newTestHandler("")
	queue.fail = true

	rec := post(h, `{"event":"call_ended","call":{"call_id":"c6","from_number":"+15551234567"}}`, "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
