package guard

import (
	"errors"
	"fmt"
)

var ErrPayloadTooLarge = errors.New("payload exceeds maximum size")

// SizeGuard rejects oversized request bodies before any parsing or
// cryptographic work is spent on them.
type SizeGuard struct {
	maxBytes int64
}

func NewSizeGuard(maxBytes int64) *SizeGuard {
	return &SizeGuard{maxBytes: maxBytes}
}

// MaxBytes returns the configured limit.
func (g *SizeGuard) MaxBytes() int64 {
	return g.maxBytes
}

// CheckDeclared validates a Content-Length header before the body is read.
// declared < 0 means the header was absent; the measured check still runs.
func (g *SizeGuard) CheckDeclared(declared int64) error {
	if declared > g.maxBytes {
		return fmt.Errorf("%w: declared %d bytes, limit %d", ErrPayloadTooLarge, declared, g.maxBytes)
	}
	return nil
}

// CheckActual validates the measured body size. This is the defense against
// a forged Content-Length header.
func (g *SizeGuard) CheckActual(actual int64) error {
	if actual > g.maxBytes {
		return fmt.Errorf("%w: body %d bytes, limit %d", ErrPayloadTooLarge, actual, g.maxBytes)
	}
	return nil
}
