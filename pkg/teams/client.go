// Package teams posts notification cards to Microsoft Teams incoming
// webhooks.
//
// The package is a small standalone SDK: build a Card (usually via
// BuildTrackCard), create a Client for the webhook URL, and Send. Delivery
// is fire-and-forget; a non-2xx response is reported as a *DeliveryError
// and never retried.
//
// Example usage:
//
//	client, err := teams.NewClient(teams.Config{WebhookURL: url})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	card := teams.BuildTrackCard("alice", entries)
//	if err := client.Send(ctx, card); err != nil {
//	    log.Println("delivery failed:", err)
//	}
package teams

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Config holds client configuration.
type Config struct {
	WebhookURL string       // Required: Teams incoming webhook URL
	HTTPClient *http.Client // Optional: HTTP client (defaults to http.DefaultClient)
}

// Client posts cards to a single Teams incoming webhook.
type Client struct {
	webhookURL string
	httpClient *http.Client
}

// DeliveryError represents a non-success response from the webhook.
type DeliveryError struct {
	StatusCode int    // HTTP status code returned by the webhook
	Body       string // Response body, truncated
}

// Error returns the error message.
func (e *DeliveryError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("teams: webhook returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("teams: webhook returned status %d: %s", e.StatusCode, e.Body)
}

// maxErrorBody bounds how much of an error response is kept for messages.
const maxErrorBody = 512

// NewClient creates a webhook client.
//
// Returns an error if the webhook URL is missing.
func NewClient(cfg Config) (*Client, error) {
	if cfg.WebhookURL == "" {
		return nil, fmt.Errorf("teams: WebhookURL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		webhookURL: cfg.WebhookURL,
		httpClient: httpClient,
	}, nil
}

// Send POSTs the card to the webhook as JSON.
//
// Any response with a non-2xx status code is returned as a *DeliveryError.
// The response body is otherwise ignored.
func (c *Client) Send(ctx context.Context, card *Card) error {
	payload, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("teams: failed to encode card: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("teams: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("teams: webhook request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &DeliveryError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	return nil
}
