// Package signer implements HMAC-SHA256 signing and verification of
// outbound webhook deliveries.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

const (
	// DefaultTolerance bounds how stale a provided timestamp may be
	// relative to now before verification fails.
	DefaultTolerance = 300 * time.Second

	// SignatureHeader and TimestampHeader are the outbound header names
	// carrying the signature and the signed timestamp.
	SignatureHeader = "X-Webhook-Signature"
	TimestampHeader = "X-Webhook-Timestamp"

	// UserAgent is sent on every outbound delivery attempt.
	UserAgent = "EventDelivery/1.0"
)

// Signer generates and verifies HMAC-SHA256 signatures over a canonical
// "{timestamp}.{payload_json}" message, matching the partner webhook
// signing scheme. Distinct from the upstream signing scheme (§ EXTERNAL
// INTERFACES), which signs the raw request body with no timestamp.
type Signer struct {
	Tolerance time.Duration
}

// New returns a Signer using DefaultTolerance.
func New() *Signer {
	return &Signer{Tolerance: DefaultTolerance}
}

// Sign computes the hex-encoded HMAC-SHA256 signature of payload under
// secret, for the given unix timestamp. payload is re-marshaled with
// sorted keys and no insignificant whitespace to produce the canonical
// message, so callers may pass any JSON-marshalable value.
func Sign(payload any, secret string, timestamp int64) (string, error) {
	message, err := canonicalMessage(payload, timestamp)
	if err != nil {
		return "", err
	}
	return hexHMAC(secret, message), nil
}

// Verify reports whether signature is the correct HMAC-SHA256 signature
// for payload/secret/timestamp, and that timestamp is within tolerance
// of now. Every failure path — missing secret, bad signature, stale
// timestamp — returns false through the same code path so no timing or
// allocation difference distinguishes the reasons.
func (s *Signer) Verify(payload any, secret string, signature string, timestamp int64, now time.Time) bool {
	tolerance := s.Tolerance
	if tolerance == 0 {
		tolerance = DefaultTolerance
	}

	delta := now.Unix() - timestamp
	if delta < 0 {
		delta = -delta
	}
	withinTolerance := delta <= int64(tolerance.Seconds())

	expected, err := Sign(payload, secret, timestamp)
	validSignature := err == nil && hmac.Equal([]byte(expected), []byte(signature))

	return withinTolerance && validSignature
}

// Headers returns the full set of headers an outbound delivery attaches
// to a signed request.
func Headers(payload any, secret string, timestamp int64) (map[string]string, error) {
	signature, err := Sign(payload, secret, timestamp)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"Content-Type":  "application/json",
		SignatureHeader: signature,
		TimestampHeader: fmt.Sprintf("%d", timestamp),
		"User-Agent":    UserAgent,
	}, nil
}

func canonicalMessage(payload any, timestamp int64) (string, error) {
	canonical, err := canonicalJSON(payload)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d.%s", timestamp, canonical), nil
}

// canonicalJSON marshals v to compact JSON. encoding/json already emits
// map keys in sorted order and never inserts insignificant whitespace,
// so this is canonical as long as payloads are built from maps/slices
// (never field-ordered structs) — see the opaque JSON value design note.
func canonicalJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func hexHMAC(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyUpstream verifies the upstream media service's signature, which
// is computed directly over the raw request body (no timestamp prefix,
// no tolerance window) and delivered in the X-Signature header.
func VerifyUpstream(body []byte, secret string, signature string) bool {
	expected := hexHMAC(secret, string(body))
	return hmac.Equal([]byte(expected), []byte(signature))
}
