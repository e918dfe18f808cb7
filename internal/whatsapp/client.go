package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL    = "https://graph.facebook.com"
	DefaultAPIVersion = "v22.0"
	DefaultTimeout    = 15 * time.Second

	messagingProduct = "whatsapp"

	// Provider limits for reply buttons.
	MaxButtons       = 3
	MaxButtonTitle   = 20
	MaxButtonIDBytes = 256

	// Maximum response body size kept for error reporting
	maxErrorBodySize = 4096
	maxResponseSize  = 64 * 1024
)

var (
	ErrNoRecipient    = errors.New("whatsapp: recipient is required")
	ErrEmptyBody      = errors.New("whatsapp: message body is required")
	ErrInvalidButtons = errors.New("whatsapp: invalid buttons")
)

// SendError is returned when the Graph API answers with a non-2xx status.
type SendError struct {
	Status int
	Body   string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("whatsapp send failed: %d %s", e.Status, e.Body)
}

// Button is a reply button. ID comes back as the interactive reply id when
// the user taps it.
type Button struct {
	ID    string
	Title string
}

// SendResult describes an accepted (or suppressed) message.
type SendResult struct {
	MessageID  string
	Suppressed bool
}

// Config configures a Client.
type Config struct {
	BaseURL       string
	APIVersion    string
	PhoneNumberID string
	AccessToken   string
	// TestMode suppresses every network call.
	TestMode bool
	Timeout  time.Duration
	// SendRate caps outbound messages per second; zero means unlimited.
	SendRate float64
	// HTTPClient overrides the default client (Timeout is ignored then).
	HTTPClient *http.Client
}

// Client sends messages through the Cloud API /messages endpoint.
type Client struct {
	config  Config
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates a Client, applying defaults for unset fields.
func New(config Config, logger *slog.Logger) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.APIVersion == "" {
		config.APIVersion = DefaultAPIVersion
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}

	c := &Client{
		config: config,
		client: client,
		logger: logger,
	}
	if config.SendRate > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(config.SendRate), 1)
	}
	return c
}

// TestMode reports whether sends are suppressed.
func (c *Client) TestMode() bool {
	return c.config.TestMode
}

// SendText sends a plain text message.
func (c *Client) SendText(ctx context.Context, to, body string) (*SendResult, error) {
	if to == "" {
		return nil, ErrNoRecipient
	}
	if body == "" {
		return nil, ErrEmptyBody
	}

	if c.config.TestMode {
		c.logger.Info("sendText suppressed", "to", to, "body", body)
		return suppressed(), nil
	}

	return c.send(ctx, TextRequest{
		MessagingProduct: messagingProduct,
		To:               to,
		Type:             "text",
		Text:             TextContent{Body: body},
	})
}

// SendButtons sends an interactive message with one to three reply buttons.
func (c *Client) SendButtons(ctx context.Context, to, body string, buttons []Button) (*SendResult, error) {
	if to == "" {
		return nil, ErrNoRecipient
	}
	if body == "" {
		return nil, ErrEmptyBody
	}
	if err := ValidateButtons(buttons); err != nil {
		return nil, err
	}

	if c.config.TestMode {
		c.logger.Info("sendButtons suppressed", "to", to, "body", body, "buttons", buttons)
		return suppressed(), nil
	}

	wire := make([]ReplyButton, len(buttons))
	for i, b := range buttons {
		wire[i] = ReplyButton{Type: "reply", Reply: ReplyItem{ID: b.ID, Title: b.Title}}
	}

	return c.send(ctx, InteractiveRequest{
		MessagingProduct: messagingProduct,
		To:               to,
		Type:             "interactive",
		Interactive: InteractiveContent{
			Type:   "button",
			Body:   InteractiveBody{Text: body},
			Action: InteractiveAction{Buttons: wire},
		},
	})
}

// ValidateButtons checks a button set against provider limits.
func ValidateButtons(buttons []Button) error {
	if len(buttons) == 0 || len(buttons) > MaxButtons {
		return fmt.Errorf("%w: need 1 to %d buttons, got %d", ErrInvalidButtons, MaxButtons, len(buttons))
	}
	seen := make(map[string]bool, len(buttons))
	for i, b := range buttons {
		if b.ID == "" || len(b.ID) > MaxButtonIDBytes {
			return fmt.Errorf("%w: button %d id must be 1-%d bytes", ErrInvalidButtons, i, MaxButtonIDBytes)
		}
		if seen[b.ID] {
			return fmt.Errorf("%w: duplicate button id %q", ErrInvalidButtons, b.ID)
		}
		seen[b.ID] = true
		if n := utf8.RuneCountInString(b.Title); n == 0 || n > MaxButtonTitle {
			return fmt.Errorf("%w: button %d title must be 1-%d characters", ErrInvalidButtons, i, MaxButtonTitle)
		}
	}
	return nil
}

func (c *Client) messagesURL() string {
	return fmt.Sprintf("%s/%s/%s/messages", strings.TrimRight(c.config.BaseURL, "/"), c.config.APIVersion, c.config.PhoneNumberID)
}

func (c *Client) send(ctx context.Context, payload any) (*SendResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	// Timeout covers the pacing wait as well as the round trip. Wait fails
	// at once when the next token is due after the deadline.
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("send rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.messagesURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create send request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to POST message: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, &SendError{Status: resp.StatusCode, Body: string(respBody)}
	}

	result := &SendResult{}
	var decoded SendMessageResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&decoded); err != nil {
		c.logger.Debug("unreadable send response", "status", resp.StatusCode, "error", err)
		return result, nil
	}
	if len(decoded.Messages) > 0 {
		result.MessageID = decoded.Messages[0].ID
	}
	return result, nil
}

func suppressed() *SendResult {
	return &SendResult{
		MessageID:  "suppressed-" + uuid.NewString(),
		Suppressed: true,
	}
}
