package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/mattjoyce/menubot/internal/log"
	"github.com/mattjoyce/menubot/internal/menu"
	"github.com/mattjoyce/menubot/internal/whatsapp"
)

// ErrPayloadTooLarge is reported when a delivery exceeds MaxBodySize.
var ErrPayloadTooLarge = errors.New("payload too large")

// handleVerify answers the provider's subscription handshake.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode != "subscribe" || !s.tokenMatches(token) {
		s.logger.Warn("webhook verification refused", "mode", mode)
		s.respondError(w, http.StatusForbidden, "forbidden")
		return
	}

	s.logger.Info("webhook verified", "mode", mode)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, challenge)
}

func (s *Server) tokenMatches(token string) bool {
	if s.config.VerifyToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.config.VerifyToken)) == 1
}

// handleEvent receives a delivery. It always answers 200.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	logger := log.WithEvent(s.logger, uuid.NewString()).With(
		"request_id", middleware.GetReqID(r.Context()),
	)

	s.acknowledge(w, logger, func() error {
		return s.processEvent(r, logger)
	})
}

// acknowledge runs fn and then writes 200 no matter what fn did: errors and
// panics are logged and dropped. The provider redelivers aggressively on any
// other status, so failures surface only through the logs.
func (s *Server) acknowledge(w http.ResponseWriter, logger *slog.Logger, fn func() error) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("webhook event panicked", "panic", rec, "stack", string(debug.Stack()))
		}
		w.WriteHeader(http.StatusOK)
	}()

	err := fn()
	switch {
	case err == nil:
	case errors.Is(err, ErrMissingSignature), errors.Is(err, ErrMalformedSignature), errors.Is(err, ErrInvalidSignature):
		logger.Warn("webhook signature verification failed", "error", err)
	default:
		logger.Error("webhook event failed", "error", err)
	}
}

// processEvent verifies, decodes, routes and replies to one delivery.
func (s *Server) processEvent(r *http.Request, logger *slog.Logger) error {
	body, err := readBody(r.Body, s.config.MaxBodySize)
	if err != nil {
		return err
	}

	if err := VerifySignature(body, r.Header.Get(SignatureHeader), s.config.AppSecret); err != nil {
		return fmt.Errorf("signature verification: %w", err)
	}

	var payload whatsapp.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}

	msg, ok := whatsapp.FirstMessage(&payload)
	if !ok {
		logger.Debug("delivery carries no message")
		return nil
	}
	if msg.From == "" {
		return fmt.Errorf("message has no sender: %w", whatsapp.ErrNoRecipient)
	}

	value := msg.Value()
	reply, step := s.router.Resolve(value)
	logger.Info("incoming message", "from", msg.From, "kind", msg.Kind.String(), "text", value, "step", step)

	// The reply outlives a provider that hangs up early. The client applies its
	// own timeout to the pacing wait and the round trip.
	ctx := context.WithoutCancel(r.Context())
	result, err := s.reply(ctx, msg.From, reply)
	if err != nil {
		return fmt.Errorf("failed to send %s reply: %w", step, err)
	}

	logger.Info("reply sent",
		"to", msg.From,
		"step", step,
		"message_id", result.MessageID,
		"suppressed", result.Suppressed,
	)
	return nil
}

func (s *Server) reply(ctx context.Context, to string, reply menu.Reply) (*whatsapp.SendResult, error) {
	switch reply.Kind {
	case menu.ReplyButtons:
		return s.sender.SendButtons(ctx, to, reply.Body, reply.Buttons)
	default:
		return s.sender.SendText(ctx, to, reply.Body)
	}
}

// readBody reads at most limit bytes, failing when the body is larger.
func readBody(body io.Reader, limit int64) ([]byte, error) {
	// Enforce body size limit
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrPayloadTooLarge, limit)
	}
	return data, nil
}
