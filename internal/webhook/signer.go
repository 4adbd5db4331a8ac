// Package webhook signs and delivers outbound job notifications.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// SignatureHeader carries the HMAC signature of the request.
	SignatureHeader = "X-Webhook-Signature"

	// TimestampHeader carries the unix timestamp the signature covers.
	TimestampHeader = "X-Webhook-Timestamp"

	// EventHeader names the event type.
	EventHeader = "X-Webhook-Event"

	// DeliveryHeader carries the unique delivery ID.
	DeliveryHeader = "X-Webhook-Delivery"

	signaturePrefix = "sha256="

	// MaxTimestampAge is the oldest signature Verify accepts.
	MaxTimestampAge = 5 * time.Minute
)

var (
	// ErrMissingSignature is returned when the signature header is absent.
	ErrMissingSignature = errors.New("missing webhook signature")

	// ErrInvalidSignature is returned when the signature does not match.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrInvalidTimestamp is returned when the timestamp header cannot be parsed.
	ErrInvalidTimestamp = errors.New("invalid webhook timestamp")

	// ErrTimestampExpired is returned when the timestamp is too old or too far in the future.
	ErrTimestampExpired = errors.New("webhook timestamp expired")
)

// Signer computes HMAC-SHA256 signatures over "<timestamp>.<body>".
type Signer struct {
	secret []byte
}

// NewSigner returns a signer for secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign returns the "sha256=<hex>" signature of body at ts.
func (s *Signer) Sign(ts time.Time, body []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(strconv.FormatInt(ts.Unix(), 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// Apply sets the signature and metadata headers on req.
func (s *Signer) Apply(req *http.Request, ts time.Time, event, deliveryID string, body []byte) {
	req.Header.Set(TimestampHeader, strconv.FormatInt(ts.Unix(), 10))
	req.Header.Set(EventHeader, event)
	req.Header.Set(DeliveryHeader, deliveryID)
	if len(s.secret) > 0 {
		req.Header.Set(SignatureHeader, s.Sign(ts, body))
	}
}

// Verify checks a received signature against body. now is the receiver's clock.
func (s *Signer) Verify(signature, timestamp string, body []byte, now time.Time) error {
	if signature == "" {
		return ErrMissingSignature
	}

	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrInvalidTimestamp
	}
	ts := time.Unix(unix, 0)
	age := now.Sub(ts)
	if age > MaxTimestampAge || age < -MaxTimestampAge {
		return fmt.Errorf("%w: age %s", ErrTimestampExpired, age.Truncate(time.Second))
	}

	got, err := hex.DecodeString(strings.TrimPrefix(signature, signaturePrefix))
	if err != nil {
		return ErrInvalidSignature
	}
	want, _ := hex.DecodeString(strings.TrimPrefix(s.Sign(ts, body), signaturePrefix))
	if !hmac.Equal(got, want) {
		return ErrInvalidSignature
	}
	return nil
}

// VerifyRequest verifies the headers of an incoming request against body.
func (s *Signer) VerifyRequest(r *http.Request, body []byte, now time.Time) error {
	return s.Verify(r.Header.Get(SignatureHeader), r.Header.Get(TimestampHeader), body, now)
}
