package signature

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVerifier(t *testing.T) {
	t.Run("empty secret refused", func(t *testing.T) {
		_, err := NewVerifier("", 300)
		assert.ErrorIs(t, err, ErrNoSecret)
	})

	t.Run("non-positive tolerance refused", func(t *testing.T) {
		_, err := NewVerifier("secret", 0)
		assert.Error(t, err)
	})

	t.Run("valid", func(t *testing.T) {
		v, err := NewVerifier("secret", 300)
		require.NoError(t, err)
		assert.Equal(t, int64(300), v.Tolerance())
	})
}

func TestVerifier_Verify(t *testing.T) {
	v, err := NewVerifier("test-webhook-secret", 300)
	require.NoError(t, err)

	payload := []byte(`{"id":"evt_1","event":"message_created"}`)
	ts := int64(1756710000)

	t.Run("own signature verifies", func(t *testing.T) {
		sig := v.Sign(ts, payload)
		assert.True(t, strings.HasPrefix(sig, Prefix))
		assert.NoError(t, v.Verify(payload, ts, sig))
	})

	t.Run("tampered payload rejected", func(t *testing.T) {
		sig := v.Sign(ts, payload)
		tampered := []byte(`{"id":"evt_1","event":"message_created","admin":true}`)
		assert.ErrorIs(t, v.Verify(tampered, ts, sig), ErrInvalidSignature)
	})

	t.Run("different timestamp rejected", func(t *testing.T) {
		sig := v.Sign(ts, payload)
		assert.ErrorIs(t, v.Verify(payload, ts+1, sig), ErrInvalidSignature)
	})

	t.Run("different secret rejected", func(t *testing.T) {
		other, err := NewVerifier("another-secret", 300)
		require.NoError(t, err)
		sig := other.Sign(ts, payload)
		assert.ErrorIs(t, v.Verify(payload, ts, sig), ErrInvalidSignature)
	})

	t.Run("missing prefix rejected", func(t *testing.T) {
		sig := strings.TrimPrefix(v.Sign(ts, payload), Prefix)
		assert.ErrorIs(t, v.Verify(payload, ts, sig), ErrInvalidSignature)
	})

	t.Run("empty signature rejected", func(t *testing.T) {
		assert.ErrorIs(t, v.Verify(payload, ts, ""), ErrMissingSignature)
	})

	t.Run("garbage signature rejected", func(t *testing.T) {
		assert.ErrorIs(t, v.Verify(payload, ts, "sha256=nothex"), ErrInvalidSignature)
	})
}

func TestValidateTimestamp(t *testing.T) {
	now := int64(1756710000)

	tests := []struct {
		name      string
		timestamp int64
		tolerance int64
		wantErr   bool
	}{
		{name: "current", timestamp: now, tolerance: 300, wantErr: false},
		{name: "within tolerance past", timestamp: now - 299, tolerance: 300, wantErr: false},
		{name: "exactly at tolerance", timestamp: now - 300, tolerance: 300, wantErr: false},
		{name: "just outside tolerance", timestamp: now - 301, tolerance: 300, wantErr: true},
		{name: "far in the past", timestamp: now - 400, tolerance: 300, wantErr: true},
		{name: "future within tolerance", timestamp: now + 250, tolerance: 300, wantErr: false},
		{name: "future outside tolerance", timestamp: now + 301, tolerance: 300, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTimestamp(tt.timestamp, now, tt.tolerance)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrTimestampExpired)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		ts, err := ParseTimestamp("1756710000")
		require.NoError(t, err)
		assert.Equal(t, int64(1756710000), ts)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ParseTimestamp("")
		assert.ErrorIs(t, err, ErrMissingTimestamp)
	})

	t.Run("not a number", func(t *testing.T) {
		_, err := ParseTimestamp("yesterday")
		assert.ErrorIs(t, err, ErrMissingTimestamp)
	})
}
