package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/frontdesk/frontdesk/pkg/pagination"
)

// memStore keeps endpoints and deliveries in slices, mirroring the not-found
// behavior of the Postgres store.
type memStore struct {
	mu         sync.Mutex
	endpoints  []*Endpoint
	deliveries []*Delivery
}

func (s *memStore) SaveEndpoint(_ context.Context, ep *Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoints = append(s.endpoints, ep)
	return nil
}

func (s *memStore) Endpoint(_ context.Context, id string) (*Endpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ep := range s.endpoints {
		if ep.ID == id {
			cp := *ep
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *memStore) Endpoints(_ context.Context, tenantID string, p pagination.Params) ([]*Endpoint, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Endpoint
	for _, ep := range s.endpoints {
		if tenantID == "" || ep.TenantID == tenantID {
			out = append(out, ep)
		}
	}
	total := len(out)
	if p.Offset >= total {
		return nil, total, nil
	}
	end := p.Offset + p.Limit
	if end > total {
		end = total
	}
	return out[p.Offset:end], total, nil
}

func (s *memStore) UpdateEndpoint(_ context.Context, ep *Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, old := range s.endpoints {
		if old.ID == ep.ID {
			s.endpoints[i] = ep
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (s *memStore) DeleteEndpoint(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, ep := range s.endpoints {
		if ep.ID == id {
			s.endpoints = append(s.endpoints[:i], s.endpoints[i+1:]...)
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (s *memStore) LogDelivery(_ context.Context, d *Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliveries = append(s.deliveries, d)
	return nil
}

func (s *memStore) Deliveries(_ context.Context, endpointID string, p pagination.Params) ([]*Delivery, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Delivery
	for _, d := range s.deliveries {
		if d.EndpointID == endpointID {
			out = append(out, d)
		}
	}
	total := len(out)
	if p.Offset >= total {
		return nil, total, nil
	}
	end := p.Offset + p.Limit
	if end > total {
		end = total
	}
	return out[p.Offset:end], total, nil
}

func (s *memStore) Delivery(_ context.Context, id string) (*Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.deliveries {
		if d.ID == id {
			cp := *d
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func newTestManager(store Store) *Manager {
	return NewManager(store, zerolog.Nop(), WithRetryWait(0))
}

func TestMatches(t *testing.T) {
	cases := []struct {
		pattern string
		event   string
		want    bool
	}{
		{"appointment.created", "appointment.created", true},
		{"appointment.created", "appointment.cancelled", false},
		{"appointment.*", "appointment.created", true},
		{"appointment.*", "appointment.cancelled", true},
		{"appointment.*", "call.recorded", false},
		{"appointment.*", "appointments.created", false},
		{"*", "call.recorded", true},
		{"call.recorded", "appointment.created", false},
	}
	for _, tc := range cases {
		if got := matches(tc.pattern, tc.event); got != tc.want {
			t.Errorf("matches(%q, %q) = %v, want %v", tc.pattern, tc.event, got, tc.want)
		}
	}
}

func TestSignAndVerify(t *testing.T) {
	payload := []byte(`{"id":"abc"}`)
	sig := SignPayload(payload, "secret")
	if !VerifySignature(payload, "secret", sig) {
		t.Error("signature should verify with the right secret")
	}
	if VerifySignature(payload, "wrong", sig) {
		t.Error("signature should not verify with the wrong secret")
	}
	if VerifySignature([]byte(`{"id":"tampered"}`), "secret", sig) {
		t.Error("signature should not verify for a tampered payload")
	}
}

func TestRegister(t *testing.T) {
	store := &memStore{}
	m := newTestManager(store)
	ctx := context.Background()

	ep, err := m.Register(ctx, "salon_west", "https://example.com/hooks", "", []string{"appointment.*"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if ep.Secret == "" {
		t.Error("expected a generated secret")
	}
	if !ep.Enabled {
		t.Error("new endpoints should start enabled")
	}

	if _, err := m.Register(ctx, "salon_west", "", "s", []string{"*"}); err == nil {
		t.Error("empty URL should be rejected")
	}
	if _, err := m.Register(ctx, "salon_west", "ftp://example.com", "s", []string{"*"}); err == nil {
		t.Error("non-http scheme should be rejected")
	}
	if _, err := m.Register(ctx, "salon_west", "https://example.com", "s", nil); err == nil {
		t.Error("empty event list should be rejected")
	}
}

func TestNotify_FansOutToMatchingEndpoints(t *testing.T) {
	var hits int32
	var mu sync.Mutex
	var gotSig, gotEvent string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotSig = r.Header.Get("X-Frontdesk-Signature")
		gotEvent = r.Header.Get("X-Frontdesk-Event")
		gotBody = body
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := &memStore{}
	m := newTestManager(store)
	ctx := context.Background()

	matching, _ := m.Register(ctx, "salon_west", srv.URL, "hooksecret", []string{"appointment.*"})
	m.Register(ctx, "salon_west", srv.URL, "s2", []string{"call.recorded"})
	m.Register(ctx, "salon_east", srv.URL, "s3", []string{"*"})

	results := m.Notify(ctx, Event{
		ID:         "ev-1",
		Type:       "appointment.created",
		TenantID:   "salon_west",
		Subject:    "appt-1",
		Payload:    json.RawMessage(`{"start_at":"2025-03-10T10:00:00Z"}`),
		OccurredAt: time.Now(),
	})

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].EndpointID != matching.ID || !results[0].Delivered {
		t.Errorf("unexpected result %+v", results[0])
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Errorf("expected 1 HTTP hit, got %d", hits)
	}
	if gotEvent != "appointment.created" {
		t.Errorf("event header = %q", gotEvent)
	}
	want := "sha256=" + SignPayload(gotBody, "hooksecret")
	if gotSig != want {
		t.Errorf("signature header = %q, want %q", gotSig, want)
	}

	if len(store.deliveries) != 1 {
		t.Fatalf("expected 1 logged delivery, got %d", len(store.deliveries))
	}
	if d := store.deliveries[0]; !d.Delivered || d.EventType != "appointment.created" {
		t.Errorf("unexpected delivery log %+v", d)
	}
}

func TestNotify_SkipsDisabledEndpoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("disabled endpoint should not be called")
	}))
	defer srv.Close()

	store := &memStore{}
	m := newTestManager(store)
	ctx := context.Background()

	ep, _ := m.Register(ctx, "salon_west", srv.URL, "s", []string{"*"})
	ep.Enabled = false
	store.UpdateEndpoint(ctx, ep)

	if results := m.Notify(ctx, Event{Type: "appointment.created", TenantID: "salon_west"}); len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestSend_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := &memStore{}
	m := newTestManager(store)
	ctx := context.Background()
	ep, _ := m.Register(ctx, "salon_west", srv.URL, "s", []string{"*"})

	results := m.Notify(ctx, Event{ID: "ev-1", Type: "appointment.created", TenantID: "salon_west"})
	if len(results) != 1 || !results[0].Delivered {
		t.Fatalf("expected delivery to succeed after retries, got %+v", results)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}

	log, _, _ := store.Deliveries(ctx, ep.ID, pagination.Params{Limit: 10})
	if len(log) != 1 {
		t.Fatalf("retries should fold into one delivery row, got %d", len(log))
	}
	if log[0].Attempt != 3 {
		t.Errorf("logged attempt = %d, want 3", log[0].Attempt)
	}
}

func TestSend_ClientErrorsAreNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	store := &memStore{}
	m := newTestManager(store)
	ctx := context.Background()
	m.Register(ctx, "salon_west", srv.URL, "s", []string{"*"})

	results := m.Notify(ctx, Event{Type: "appointment.created", TenantID: "salon_west"})
	if len(results) != 1 || results[0].Delivered {
		t.Fatalf("expected a failed delivery, got %+v", results)
	}
	if results[0].StatusCode != http.StatusGone {
		t.Errorf("status = %d, want %d", results[0].StatusCode, http.StatusGone)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("4xx should not be retried, got %d calls", calls)
	}
}

func TestSend_NetworkFailureIsLogged(t *testing.T) {
	store := &memStore{}
	m := newTestManager(store)
	ctx := context.Background()
	ep, _ := m.Register(ctx, "salon_west", "http://127.0.0.1:1", "s", []string{"*"})

	results := m.Notify(ctx, Event{Type: "appointment.created", TenantID: "salon_west"})
	if len(results) != 1 || results[0].Delivered {
		t.Fatalf("expected a failed delivery, got %+v", results)
	}
	if results[0].Error == "" {
		t.Error("expected an error message")
	}

	log, _, _ := store.Deliveries(ctx, ep.ID, pagination.Params{Limit: 10})
	if len(log) != 1 || log[0].Delivered {
		t.Fatalf("expected one failed delivery row, got %+v", log)
	}
}

func TestPing(t *testing.T) {
	var gotEvent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEvent = r.Header.Get("X-Frontdesk-Event")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := &memStore{}
	m := newTestManager(store)
	ctx := context.Background()
	ep, _ := m.Register(ctx, "salon_west", srv.URL, "s", []string{"appointment.*"})

	d, err := m.Ping(ctx, ep.ID)
	if err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if !d.Delivered || d.EventType != "ping" || gotEvent != "ping" {
		t.Errorf("unexpected ping delivery %+v", d)
	}

	if _, err := m.Ping(ctx, "missing"); err == nil {
		t.Error("ping of an unknown endpoint should fail")
	}
}

func TestRedeliver(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := &memStore{}
	m := newTestManager(store)
	ctx := context.Background()
	ep, _ := m.Register(ctx, "salon_west", srv.URL, "s", []string{"*"})

	m.Notify(ctx, Event{ID: "ev-1", Type: "appointment.created", TenantID: "salon_west"})
	log, _, _ := store.Deliveries(ctx, ep.ID, pagination.Params{Limit: 10})
	if len(log) != 1 || log[0].Delivered {
		t.Fatalf("expected one failed delivery, got %+v", log)
	}

	d, err := m.Redeliver(ctx, log[0].ID)
	if err != nil {
		t.Fatalf("Redeliver: %v", err)
	}
	if !d.Delivered {
		t.Error("redelivery should succeed")
	}
	if d.Attempt != log[0].Attempt+1 {
		t.Errorf("attempt = %d, want %d", d.Attempt, log[0].Attempt+1)
	}
	if d.EventID != "ev-1" {
		t.Errorf("event id = %q, want ev-1", d.EventID)
	}

	if _, err := m.Redeliver(ctx, "missing"); err == nil {
		t.Error("redeliver of an unknown delivery should fail")
	}
}
