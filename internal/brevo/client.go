// Package brevo is a minimal client for the Brevo transactional email API.
package brevo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/questspace/digest-service/internal/pkg/httpretry"
)

const defaultBaseURL = "https://api.brevo.com"

// Client calls the Brevo v3 SMTP API.
type Client struct {
	apiKey  string
	baseURL string
	client  httpretry.HTTPDoer
}

// NewClient creates a Brevo client. Transient provider errors (429, 5xx,
// network) are retried by the underlying HTTP client.
func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpretry.NewRetryClient(&http.Client{Timeout: 30 * time.Second}, 2),
	}
}

// SetClient replaces the HTTP client, used by tests.
func (c *Client) SetClient(hc httpretry.HTTPDoer) { c.client = hc }

// Recipient addresses a single receiver.
type Recipient struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// SendRequest is the v3/smtp/email payload. Either TemplateID+Params or
// Subject+HTMLContent must be set.
type SendRequest struct {
	Sender      Recipient              `json:"sender"`
	To          []Recipient            `json:"to"`
	Subject     string                 `json:"subject,omitempty"`
	HTMLContent string                 `json:"htmlContent,omitempty"`
	TextContent string                 `json:"textContent,omitempty"`
	TemplateID  int64                  `json:"templateId,omitempty"`
	Params      map[string]interface{} `json:"params,omitempty"`
	Headers     map[string]string      `json:"headers,omitempty"`
	Tags        []string               `json:"tags,omitempty"`
}

// APIError is a non-2xx response from Brevo.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("brevo returned %d: %s", e.StatusCode, e.Body)
}

// Permanent reports whether the rejection will not succeed on retry.
func (e *APIError) Permanent() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != http.StatusTooManyRequests
}

// Send dispatches one transactional email and returns the provider message ID.
func (c *Client) Send(ctx context.Context, sr *SendRequest) (string, error) {
	body, err := json.Marshal(sr)
	if err != nil {
		return "", fmt.Errorf("marshal send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v3/smtp/email", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("brevo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}

	var out struct {
		MessageID string `json:"messageId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode brevo response: %w", err)
	}
	return out.MessageID, nil
}
