// Package crypto holds request-signing helpers for authenticated upstream
// APIs.
package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// HMACAuth holds the credentials for HMAC-authenticated requests against the
// Data Streams REST and WebSocket endpoints.
type HMACAuth struct {
	Key    string // API key
	Secret string // API secret
}

// StreamHeaders returns the HTTP headers for a Data Streams request. The
// signature is HMAC-SHA256(secret, method+path+bodyHash+key+timestamp) encoded
// as hex, with the timestamp in Unix milliseconds.
//
// Returned header keys:
//   - Authorization
//   - X-Authorization-Timestamp
//   - X-Authorization-Signature-SHA256
func (h *HMACAuth) StreamHeaders(method, path string, body []byte) map[string]string {
	return h.StreamHeadersAt(method, path, body, time.Now().UnixMilli())
}

// StreamHeadersAt is like StreamHeaders but lets the caller supply the
// millisecond timestamp (useful for deterministic testing).
func (h *HMACAuth) StreamHeadersAt(method, path string, body []byte, unixMilli int64) map[string]string {
	ts := strconv.FormatInt(unixMilli, 10)

	bodyHash := sha256.Sum256(body)
	message := method + " " + path + " " + hex.EncodeToString(bodyHash[:]) + " " + h.Key + " " + ts

	mac := hmac.New(sha256.New, []byte(h.Secret))
	mac.Write([]byte(message))

	return map[string]string{
		"Authorization":                    h.Key,
		"X-Authorization-Timestamp":        ts,
		"X-Authorization-Signature-SHA256": hex.EncodeToString(mac.Sum(nil)),
	}
}

// String returns a redacted representation suitable for logging.
func (h *HMACAuth) String() string {
	redact := func(s string) string {
		if len(s) <= 4 {
			return "****"
		}
		return s[:4] + "****"
	}
	return fmt.Sprintf("HMACAuth{key=%s, secret=%s}", redact(h.Key), redact(h.Secret))
}
