package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
)

const Prefix = "sha256="

var (
	ErrMissingSignature = errors.New("signature header is required")
	ErrMissingTimestamp = errors.New("timestamp header is required")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrTimestampExpired = errors.New("timestamp outside allowed tolerance")
	ErrNoSecret         = errors.New("webhook secret is not configured")
)

// Verifier checks webhook authenticity. The signature covers
// "<timestamp>.<raw payload>" with HMAC-SHA256 under a shared secret.
type Verifier struct {
	secret    []byte
	tolerance int64
}

// NewVerifier builds a Verifier. An empty secret is a server
// misconfiguration and fails here rather than silently accepting
// everything at request time.
func NewVerifier(secret string, toleranceSeconds int64) (*Verifier, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	if toleranceSeconds <= 0 {
		return nil, fmt.Errorf("tolerance must be positive, got %d", toleranceSeconds)
	}
	return &Verifier{
		secret:    []byte(secret),
		tolerance: toleranceSeconds,
	}, nil
}

// Tolerance returns the configured replay window in seconds.
func (v *Verifier) Tolerance() int64 {
	return v.tolerance
}

// Sign computes the signature the sender is expected to provide for the
// given timestamp and payload, including the "sha256=" prefix.
func (v *Verifier) Sign(timestamp int64, payload []byte) string {
	h := hmac.New(sha256.New, v.secret)
	h.Write([]byte(strconv.FormatInt(timestamp, 10)))
	h.Write([]byte("."))
	h.Write(payload)
	return Prefix + hex.EncodeToString(h.Sum(nil))
}

// Verify checks the provided signature against the expected one using a
// constant-time comparison. It does not look at the timestamp's freshness;
// that is ValidateTimestamp's job.
func (v *Verifier) Verify(payload []byte, timestamp int64, provided string) error {
	if provided == "" {
		return ErrMissingSignature
	}
	expected := v.Sign(timestamp, payload)
	if !hmac.Equal([]byte(expected), []byte(provided)) {
		return ErrInvalidSignature
	}
	return nil
}

// ValidateTimestamp bounds the replay window: a captured signed payload can
// only be replayed while |now - timestamp| <= tolerance. The idempotency
// store blocks replays of seen ids permanently regardless.
func (v *Verifier) ValidateTimestamp(timestamp, now int64) error {
	return ValidateTimestamp(timestamp, now, v.tolerance)
}

// ValidateTimestamp fails when the claimed timestamp is more than tolerance
// seconds away from now, in either direction.
func ValidateTimestamp(timestamp, now, tolerance int64) error {
	skew := now - timestamp
	if skew < 0 {
		skew = -skew
	}
	if skew > tolerance {
		return fmt.Errorf("%w: skew %ds exceeds %ds", ErrTimestampExpired, skew, tolerance)
	}
	return nil
}

// ParseTimestamp parses the X-Timestamp header value (unix seconds).
func ParseTimestamp(raw string) (int64, error) {
	if raw == "" {
		return 0, ErrMissingTimestamp
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: not unix seconds: %q", ErrMissingTimestamp, raw)
	}
	return ts, nil
}
