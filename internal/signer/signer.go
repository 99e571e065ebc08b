// Package signer implements the provider's request authentication
// scheme: an HMAC-SHA256 digest over method, path, body and timestamp.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Authentication header names expected by the provider.
const (
	HeaderAppToken  = "X-App-Token"
	HeaderAccessTs  = "X-App-Access-Ts"
	HeaderAccessSig = "X-App-Access-Sig"
)

// Sign computes the hex-encoded HMAC-SHA256 signature over the exact
// concatenation method+path+body+timestamp, keyed by secret. The
// timestamp is Unix seconds rendered as a decimal string with no
// separators. For multipart uploads the provider signs an empty body
// even though the HTTP body is not empty; callers pass body="" there.
func Sign(method, path, body string, timestamp int64, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(method))
	mac.Write([]byte(path))
	mac.Write([]byte(body))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Headers returns the three authentication headers for a request. The
// same timestamp is signed and transmitted; generating a fresh one for
// the header would invalidate the signature.
func Headers(method, path, body string, timestamp int64, apiKey, secret string) map[string]string {
	return map[string]string{
		HeaderAppToken:  apiKey,
		HeaderAccessTs:  strconv.FormatInt(timestamp, 10),
		HeaderAccessSig: Sign(method, path, body, timestamp, secret),
	}
}
