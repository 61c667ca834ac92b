// Package calendar pushes appointment records to the tenant's external
// calendar. Callers treat every operation as best-effort: the local CRM row
// is authoritative and a failed sync only leaves it unsynced.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/solacrm/backend/pkg/logger"
)

// Event is the provider-facing shape of an appointment.
type Event struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Attendees   []string  `json:"attendees,omitempty"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
}

// Provider creates events in an external calendar and returns the external
// event id.
type Provider interface {
	CreateEvent(ctx context.Context, credential string, event Event) (string, error)
}

// HTTPProvider posts events to the calendar bridge service.
type HTTPProvider struct {
	baseURL string
	http    *http.Client
	log     *logger.Logger
}

// NewHTTPProvider builds a provider with its own timeout, independent of the
// caller's turn deadline.
func NewHTTPProvider(baseURL string, timeout time.Duration, log *logger.Logger) *HTTPProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log.WithComponent("calendar"),
	}
}

func (p *HTTPProvider) CreateEvent(ctx context.Context, credential string, event Event) (string, error) {
	if p.baseURL == "" {
		return "", fmt.Errorf("calendar bridge not configured")
	}
	if credential == "" {
		return "", fmt.Errorf("calendar credential required")
	}

	body, err := json.Marshal(event)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/events", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+credential)

	resp, err := p.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("calendar bridge http %d: %s", resp.StatusCode, string(raw))
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("calendar bridge decode: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("calendar bridge returned no event id")
	}
	return out.ID, nil
}
