package httputil

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "x-forwarded-for single",
			remoteAddr: "10.0.0.1:52341",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7"},
			want:       "203.0.113.7",
		},
		{
			name:       "x-forwarded-for chain takes first",
			remoteAddr: "10.0.0.1:52341",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7, 198.51.100.2, 10.0.0.1"},
			want:       "203.0.113.7",
		},
		{
			name:       "x-forwarded-for trims whitespace",
			remoteAddr: "10.0.0.1:52341",
			headers:    map[string]string{"X-Forwarded-For": "  203.0.113.7 , 198.51.100.2"},
			want:       "203.0.113.7",
		},
		{
			name:       "x-real-ip fallback",
			remoteAddr: "10.0.0.1:52341",
			headers:    map[string]string{"X-Real-IP": "198.51.100.9"},
			want:       "198.51.100.9",
		},
		{
			name:       "x-forwarded-for beats x-real-ip",
			remoteAddr: "10.0.0.1:52341",
			headers: map[string]string{
				"X-Forwarded-For": "203.0.113.7",
				"X-Real-IP":       "198.51.100.9",
			},
			want: "203.0.113.7",
		},
		{
			name:       "remote addr strips port",
			remoteAddr: "192.0.2.44:61001",
			want:       "192.0.2.44",
		},
		{
			name:       "remote addr without port",
			remoteAddr: "192.0.2.44",
			want:       "192.0.2.44",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/webhooks", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(r))
		})
	}
}

func TestParseIntParam(t *testing.T) {
	assert.Equal(t, 100, ParseIntParam("", 100))
	assert.Equal(t, 25, ParseIntParam("25", 100))
	assert.Equal(t, 100, ParseIntParam("abc", 100))
	assert.Equal(t, -5, ParseIntParam("-5", 100))
}
