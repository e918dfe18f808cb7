// Package webhook implements the WhatsApp webhook endpoint with HMAC-SHA256 verification.
//
// One path serves both directions of the provider contract: GET answers the
// subscription handshake and POST receives message deliveries. Every POST is
// answered with 200, whatever happened while processing it.
//
// # Security Model
//
// - HMAC-SHA256 signatures verified using crypto/subtle (constant-time comparison)
// - Verify token compared in constant time; an unset token refuses every handshake
// - Body size limits enforced before any parsing
// - Request logging excludes payloads
// - Secrets loaded from environment variables (never hardcoded)
//
// # Configuration
//
// The endpoint is configured in the webhook section of config.yaml:
//
//	webhook:
//	  port: 3000
//	  path: /webhook
//	  verify_token: ${WHATSAPP_VERIFY_TOKEN}
//	  app_secret: ${APP_SECRET}
//	  max_body_size: 1MB
//
// # Request Flow
//
//  1. HTTP POST arrives at the configured path
//  2. Body read up to max_body_size
//  3. X-Hub-Signature-256 checked against the raw body
//  4. Body decoded and the first message extracted
//  5. Router resolves the reply for the message value
//  6. Reply sent through the Sender
//  7. 200 returned
//
// A failure in steps 2 to 6 is logged and the request still gets 200.
//
// # Example Usage
//
//	cfg, err := webhook.FromGlobalConfig(globalCfg.Webhook)
//	if err != nil {
//		return err
//	}
//	srv := webhook.New(cfg, client, menu.New(opts), logger)
//	if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
//		return err
//	}
package webhook
