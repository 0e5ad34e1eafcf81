package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrUnroutable is returned for events no webhook endpoint accepts.
var ErrUnroutable = errors.New("no webhook endpoint for event")

// TokenSource signs one webhook call.
type TokenSource func() (string, error)

var webhookPaths = map[string]string{
	TablePatients: "/patient-updated",
	TableScanLogs: "/scan-inserted",
}

// HTTPPublisher posts events to the webhook endpoints, the way a managed
// database calls its webhook functions.
type HTTPPublisher struct {
	client *resty.Client
	token  TokenSource
}

// NewHTTPPublisher creates a publisher for the webhook base URL.
func NewHTTPPublisher(baseURL string, token TokenSource) *HTTPPublisher {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &HTTPPublisher{client: client, token: token}
}

// Publish posts ev to the endpoint for its table.
func (p *HTTPPublisher) Publish(ctx context.Context, ev Event) error {
	path, ok := webhookPaths[ev.Table]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnroutable, ev.Table)
	}
	token, err := p.token()
	if err != nil {
		return fmt.Errorf("sign webhook call: %w", err)
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(ev).
		Post(path)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("post %s: unexpected status %d", path, resp.StatusCode())
	}
	return nil
}
