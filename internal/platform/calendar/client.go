// Package calendar pushes appointment changes to an external calendar
// provider. Sync is best effort and driven by outbox events, so a provider
// outage never blocks a booking.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Event is the provider-neutral shape pushed on create/update/cancel.
type Event struct {
	AppointmentID string    `json:"appointment_id"`
	Title         string    `json:"title"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	StaffEmail    string    `json:"staff_email,omitempty"`
	CustomerName  string    `json:"customer_name,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	Cancelled     bool      `json:"cancelled"`
}

// Client pushes events to a calendar provider.
type Client interface {
	Push(ctx context.Context, tenant string, ev Event) error
}

// HTTPClient posts events to a configured base URL with a bearer token.
// Token acquisition and refresh are handled outside this service.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPClient) Push(ctx context.Context, tenant string, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/events", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", tenant)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("calendar push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("calendar push: provider returned %d", resp.StatusCode)
	}
	return nil
}

// Noop is used when no calendar provider is configured.
type Noop struct{}

func (Noop) Push(context.Context, string, Event) error { return nil }
