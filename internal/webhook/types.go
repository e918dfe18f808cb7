package webhook

import (
	"context"

	"github.com/mattjoyce/menubot/internal/menu"
	"github.com/mattjoyce/menubot/internal/whatsapp"
)

//go:generate mockgen -destination=mocks/mock_sender.go -package=mocks github.com/mattjoyce/menubot/internal/webhook Sender

// Sender delivers one reply through the provider.
type Sender interface {
	SendText(ctx context.Context, to, body string) (*whatsapp.SendResult, error)
	SendButtons(ctx context.Context, to, body string, buttons []whatsapp.Button) (*whatsapp.SendResult, error)
}

// Router picks the reply for a message value.
type Router interface {
	Resolve(input string) (menu.Reply, menu.Step)
}

// Config holds webhook server configuration.
type Config struct {
	Listen string

	// Path serves both the GET handshake and POST deliveries (default: "/webhook")
	Path string

	// VerifyToken is compared with hub.verify_token during the handshake
	VerifyToken string

	// AppSecret is the HMAC secret for X-Hub-Signature-256. Empty disables verification.
	AppSecret string

	// MaxBodySize is the maximum accepted delivery size in bytes (default: 1MB)
	MaxBodySize int64
}

// HealthResponse is the JSON body of /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the JSON response for webhook errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Default values
const (
	DefaultMaxBodySize = 1048576 // 1 MB
	DefaultPath        = "/webhook"
)
