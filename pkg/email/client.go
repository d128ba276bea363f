package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pinkbeam/platform/pkg/config"
	"github.com/pinkbeam/platform/pkg/observability"
)

const defaultBaseURL = "https://api.resend.com"

// Tag is a key/value pair attached to an outbound email for provider-side
// filtering and analytics.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Message is one outbound email. To always carries at least one recipient;
// ReplyTo and Tags are optional.
type Message struct {
	To      []string
	Subject string
	HTML    string
	ReplyTo string
	Tags    []Tag
}

// Client sends transactional email through the Resend HTTP API. An empty
// API key puts the client in disabled mode: Send logs and reports not-sent
// without touching the network.
type Client struct {
	apiKey     string
	from       string
	baseURL    string
	httpClient *http.Client
	logger     *observability.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL overrides the provider endpoint, mainly for tests.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// NewClient creates a Resend client from email configuration.
func NewClient(cfg config.EmailConfig, logger *observability.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	c := &Client{
		apiKey:     cfg.ResendAPIKey,
		from:       cfg.FromAddress,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	ReplyTo string   `json:"reply_to,omitempty"`
	Tags    []Tag    `json:"tags,omitempty"`
}

// Send delivers one email. It returns (false, nil) when the client is
// disabled, (true, nil) on acceptance by the provider, and a non-nil error
// on any transport or provider failure. Provider rejections include the
// response status and body.
func (c *Client) Send(ctx context.Context, msg Message) (bool, error) {
	if !c.Enabled() {
		c.logger.WithFields(map[string]interface{}{
			"subject": msg.Subject,
		}).Info("email sending disabled, no API key configured")
		return false, nil
	}

	payload, err := json.Marshal(sendRequest{
		From:    c.from,
		To:      msg.To,
		Subject: msg.Subject,
		HTML:    msg.HTML,
		ReplyTo: msg.ReplyTo,
		Tags:    msg.Tags,
	})
	if err != nil {
		return false, fmt.Errorf("failed to encode email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("failed to build email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("email request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return false, fmt.Errorf("email provider returned %d: %s", resp.StatusCode, string(body))
	}

	c.logger.WithFields(map[string]interface{}{
		"subject":    msg.Subject,
		"recipients": len(msg.To),
	}).Debug("email accepted by provider")
	return true, nil
}
