// Package webhook pushes appointment lifecycle events to URLs registered by
// tenant integrations. Payloads are signed with HMAC-SHA256 so receivers can
// authenticate them, every attempt is logged, and failed sends are retried
// with a short backoff before giving up.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/frontdesk/frontdesk/pkg/pagination"
)

// Endpoint is a subscriber URL owned by one tenant. Events lists the
// subscription patterns: exact types ("appointment.created"), a resource
// wildcard ("appointment.*"), or "*" for everything.
type Endpoint struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	URL       string    `json:"url"`
	Secret    string    `json:"secret,omitempty"`
	Events    []string  `json:"events"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

// Event is one appointment-domain occurrence to fan out. Subject carries the
// ID of the appointment or call the event is about.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	TenantID   string          `json:"tenant_id"`
	Subject    string          `json:"subject"`
	Payload    json.RawMessage `json:"data"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Delivery is the log record of one send to one endpoint, including retries
// folded into Attempt.
type Delivery struct {
	ID           string          `json:"id"`
	EndpointID   string          `json:"endpoint_id"`
	EventID      string          `json:"event_id"`
	EventType    string          `json:"event_type"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Signature    string          `json:"signature"`
	StatusCode   int             `json:"status_code"`
	ResponseBody string          `json:"response_body,omitempty"`
	DurationMS   int64           `json:"duration_ms"`
	Attempt      int             `json:"attempt"`
	Delivered    bool            `json:"delivered"`
	Error        string          `json:"error,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Store persists endpoints and the delivery log.
type Store interface {
	SaveEndpoint(ctx context.Context, ep *Endpoint) error
	Endpoint(ctx context.Context, id string) (*Endpoint, error)
	Endpoints(ctx context.Context, tenantID string, p pagination.Params) ([]*Endpoint, int, error)
	UpdateEndpoint(ctx context.Context, ep *Endpoint) error
	DeleteEndpoint(ctx context.Context, id string) error
	LogDelivery(ctx context.Context, d *Delivery) error
	Deliveries(ctx context.Context, endpointID string, p pagination.Params) ([]*Delivery, int, error)
	Delivery(ctx context.Context, id string) (*Delivery, error)
}

// Result reports what happened for one endpoint during a Notify fan-out.
type Result struct {
	EndpointID string `json:"endpoint_id"`
	Delivered  bool   `json:"delivered"`
	StatusCode int    `json:"status_code"`
	Error      string `json:"error,omitempty"`
}

// SignPayload returns the hex HMAC-SHA256 of payload under secret.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature is the hex HMAC-SHA256 of payload
// under secret, compared in constant time.
func VerifySignature(payload []byte, secret, signature string) bool {
	want := SignPayload(payload, secret)
	return hmac.Equal([]byte(want), []byte(signature))
}

// matches reports whether an event type satisfies a subscription pattern.
func matches(pattern, eventType string) bool {
	if pattern == "*" || pattern == eventType {
		return true
	}
	if resource, ok := strings.CutSuffix(pattern, ".*"); ok {
		return strings.HasPrefix(eventType, resource+".")
	}
	return false
}

func subscribed(ep *Endpoint, eventType string) bool {
	for _, pat := range ep.Events {
		if matches(pat, eventType) {
			return true
		}
	}
	return false
}

func validateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return nil
	default:
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}
}

func newSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Option configures a Manager.
type Option func(*Manager)

// WithClient overrides the HTTP client used for sends.
func WithClient(c *http.Client) Option {
	return func(m *Manager) { m.client = c }
}

// WithAttempts sets how many times a send is tried before the delivery is
// recorded as failed.
func WithAttempts(n int) Option {
	return func(m *Manager) { m.attempts = n }
}

// WithRetryWait sets the pause between send attempts.
func WithRetryWait(d time.Duration) Option {
	return func(m *Manager) { m.retryWait = d }
}

// Manager owns the endpoint registry and performs signed deliveries.
type Manager struct {
	store     Store
	client    *http.Client
	attempts  int
	retryWait time.Duration
	logger    zerolog.Logger
}

// NewManager creates a Manager that tries each send up to three times.
func NewManager(store Store, logger zerolog.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		client:    &http.Client{Timeout: 10 * time.Second},
		attempts:  3,
		retryWait: 2 * time.Second,
		logger:    logger.With().Str("component", "webhook").Logger(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Register validates and stores a new endpoint. A missing secret is replaced
// with a random one, returned once in the created endpoint.
func (m *Manager) Register(ctx context.Context, tenantID, rawURL, secret string, events []string) (*Endpoint, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("at least one event pattern is required")
	}
	if secret == "" {
		s, err := newSecret()
		if err != nil {
			return nil, fmt.Errorf("generate secret: %w", err)
		}
		secret = s
	}
	ep := &Endpoint{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		URL:       rawURL,
		Secret:    secret,
		Events:    events,
		Enabled:   true,
		CreatedAt: time.Now(),
	}
	if err := m.store.SaveEndpoint(ctx, ep); err != nil {
		return nil, err
	}
	return ep, nil
}

// Notify fans the event out to every enabled endpoint of the tenant whose
// subscription matches the event type.
func (m *Manager) Notify(ctx context.Context, ev Event) []Result {
	endpoints, _, err := m.store.Endpoints(ctx, ev.TenantID, pagination.Params{Limit: pagination.MaxLimit})
	if err != nil {
		m.logger.Error().Err(err).Str("tenant", ev.TenantID).Msg("cannot load endpoints")
		return nil
	}

	var results []Result
	for _, ep := range endpoints {
		if !ep.Enabled || !subscribed(ep, ev.Type) {
			continue
		}
		d := m.send(ctx, ep, ev, 1)
		results = append(results, Result{
			EndpointID: ep.ID,
			Delivered:  d.Delivered,
			StatusCode: d.StatusCode,
			Error:      d.Error,
		})
	}
	return results
}

// Ping sends a synthetic event so an integrator can confirm their receiver
// and signature check work.
func (m *Manager) Ping(ctx context.Context, endpointID string) (*Delivery, error) {
	ep, err := m.store.Endpoint(ctx, endpointID)
	if err != nil {
		return nil, err
	}
	return m.send(ctx, ep, Event{
		ID:         uuid.New().String(),
		Type:       "ping",
		TenantID:   ep.TenantID,
		Subject:    ep.ID,
		Payload:    json.RawMessage(`{"ping":true}`),
		OccurredAt: time.Now(),
	}, 1), nil
}

// Redeliver replays a logged delivery against its endpoint, continuing the
// attempt count of the original.
func (m *Manager) Redeliver(ctx context.Context, deliveryID string) (*Delivery, error) {
	orig, err := m.store.Delivery(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	ep, err := m.store.Endpoint(ctx, orig.EndpointID)
	if err != nil {
		return nil, err
	}
	var ev Event
	if err := json.Unmarshal(orig.Payload, &ev); err != nil {
		return nil, fmt.Errorf("stored payload is not an event: %w", err)
	}
	return m.send(ctx, ep, ev, orig.Attempt+1), nil
}

// send signs and posts the event, retrying transient failures, and logs the
// final outcome as one Delivery row.
func (m *Manager) send(ctx context.Context, ep *Endpoint, ev Event, firstAttempt int) *Delivery {
	body, _ := json.Marshal(ev)
	d := &Delivery{
		ID:         uuid.New().String(),
		EndpointID: ep.ID,
		EventID:    ev.ID,
		EventType:  ev.Type,
		Payload:    body,
		Signature:  SignPayload(body, ep.Secret),
		Attempt:    firstAttempt,
		CreatedAt:  time.Now(),
	}

	start := time.Now()
	for {
		retryable := m.post(ctx, ep, d, body)
		if d.Delivered || !retryable || d.Attempt-firstAttempt+1 >= m.attempts {
			break
		}
		select {
		case <-ctx.Done():
			d.Error = ctx.Err().Error()
			d.DurationMS = time.Since(start).Milliseconds()
			m.log(ctx, ep, d)
			return d
		case <-time.After(m.retryWait):
		}
		d.Attempt++
	}
	d.DurationMS = time.Since(start).Milliseconds()
	m.log(ctx, ep, d)
	return d
}

// post performs one HTTP attempt and reports whether a retry makes sense,
// meaning a network failure or a 5xx from the receiver.
func (m *Manager) post(ctx context.Context, ep *Endpoint, d *Delivery, body []byte) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		d.Error = err.Error()
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Frontdesk-Signature", "sha256="+d.Signature)
	req.Header.Set("X-Frontdesk-Event", d.EventType)
	req.Header.Set("X-Frontdesk-Delivery", d.ID)

	resp, err := m.client.Do(req)
	if err != nil {
		d.StatusCode = 0
		d.Error = err.Error()
		return true
	}
	defer resp.Body.Close()

	d.StatusCode = resp.StatusCode
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	d.ResponseBody = string(snippet)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		d.Delivered = true
		d.Error = ""
		return false
	}
	d.Error = fmt.Sprintf("endpoint returned %d", resp.StatusCode)
	return resp.StatusCode >= 500
}

func (m *Manager) log(ctx context.Context, ep *Endpoint, d *Delivery) {
	if err := m.store.LogDelivery(ctx, d); err != nil {
		m.logger.Error().Err(err).Str("endpoint_id", ep.ID).Msg("cannot log delivery")
	}
	if !d.Delivered {
		m.logger.Warn().Str("endpoint_id", ep.ID).Str("event", d.EventType).
			Int("status", d.StatusCode).Int("attempt", d.Attempt).Msg("delivery failed")
	}
}
