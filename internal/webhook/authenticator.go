// Package webhook authenticates inbound provider callbacks. The
// signature check is the single authorization gate for all
// webhook-derived state mutation.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignatureHeader carries the provider's webhook digest.
const SignatureHeader = "X-Webhook-Signature"

// VerifySignature recomputes the HMAC-SHA256 digest over the raw,
// unmodified request body bytes and compares it to the provided
// signature in constant time. It must never run over a re-serialized
// payload: re-encoding can reorder JSON keys and break the digest.
// Returns false on any mismatch or empty input; never errors.
func VerifySignature(rawBody []byte, providedSignature, secret string) bool {
	if len(rawBody) == 0 || providedSignature == "" || secret == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(providedSignature))
}

// ComputeSignature returns the hex digest the provider would send for
// body. Used by tests and local tooling.
func ComputeSignature(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
