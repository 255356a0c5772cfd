// Package gateway wraps the WhatsApp HTTP gateway: the send API the platform
// calls and the webhook payloads the gateway posts back.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/replygo/whatsapp-ai-platform/pkg/logging"
)

const defaultTimeout = 10 * time.Second

// ErrSendFailed wraps every non-2xx or transport failure from the gateway.
// Callers treat it as a terminal result for the turn; there is no retry.
var ErrSendFailed = errors.New("gateway: send failed")

// Config controls how the gateway client behaves.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *logging.Logger
}

// Client calls the gateway's REST API. One client serves every tenant; the
// tenant's session name goes in each request body.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient creates a configured gateway client.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("gateway: base URL is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// SendText delivers a text message to a customer phone through the tenant's
// session. A nil error means the gateway accepted the message.
func (c *Client) SendText(ctx context.Context, session, phone, text string) error {
	if strings.TrimSpace(session) == "" {
		return errors.New("gateway: session is required")
	}
	if strings.TrimSpace(phone) == "" {
		return errors.New("gateway: phone is required")
	}
	body, err := json.Marshal(struct {
		Session string `json:"session"`
		ChatID  string `json:"chatId"`
		Text    string `json:"text"`
	}{
		Session: session,
		ChatID:  ChatID(phone),
		Text:    text,
	})
	if err != nil {
		return fmt.Errorf("gateway: marshal send body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/sendText", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("gateway: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrSendFailed, ctx.Err())
		}
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("gateway rejected send",
			"status", resp.StatusCode, "session", session, "detail", string(detail))
		return fmt.Errorf("%w: http status %d", ErrSendFailed, resp.StatusCode)
	}
	return nil
}

// SessionStatus reports the connection state of a tenant's session.
func (c *Client) SessionStatus(ctx context.Context, session string) (string, error) {
	if strings.TrimSpace(session) == "" {
		return "", errors.New("gateway: session is required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/sessions/"+session, nil)
	if err != nil {
		return "", fmt.Errorf("gateway: build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gateway: session status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("gateway: session status: http status %d", resp.StatusCode)
	}
	var parsed struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("gateway: decode session status: %w", err)
	}
	return parsed.Status, nil
}
