package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
)

// SignatureHeader carries the provider's HMAC of the raw request body.
const SignatureHeader = "X-Hub-Signature-256"

var (
	ErrMissingSignature   = errors.New("missing signature header")
	ErrMalformedSignature = errors.New("malformed signature header")
	ErrInvalidSignature   = errors.New("invalid signature")
)

// VerifySignature checks an "sha256=<hex>" header against the HMAC-SHA256 of
// body keyed with secret. body must be the request bytes exactly as received.
//
// An empty secret disables verification and always returns nil.
func VerifySignature(body []byte, header, secret string) error {
	if secret == "" {
		return nil
	}
	if header == "" {
		return ErrMissingSignature
	}

	algo, hexSig, _ := strings.Cut(header, "=")
	if algo != "sha256" || hexSig == "" {
		return ErrMalformedSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expectedMAC := mac.Sum(nil)

	// Undecodable hex is compared as an empty value and fails below.
	actualMAC, err := hex.DecodeString(hexSig)
	if err != nil {
		actualMAC = nil
	}

	// Constant-time comparison to prevent timing attacks
	if subtle.ConstantTimeCompare(expectedMAC, actualMAC) != 1 {
		return ErrInvalidSignature
	}
	return nil
}

// ComputeSignature returns the hex HMAC-SHA256 of body.
func ComputeSignature(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// FormatSignature formats a hex signature as an X-Hub-Signature-256 value.
func FormatSignature(hexSig string) string {
	return "sha256=" + hexSig
}
