package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSizeGuard(t *testing.T) {
	g := NewSizeGuard(1024)

	tests := []struct {
		name    string
		check   func(int64) error
		size    int64
		wantErr bool
	}{
		{name: "declared under limit", check: g.CheckDeclared, size: 512, wantErr: false},
		{name: "declared at limit", check: g.CheckDeclared, size: 1024, wantErr: false},
		{name: "declared over limit", check: g.CheckDeclared, size: 1025, wantErr: true},
		{name: "declared absent", check: g.CheckDeclared, size: -1, wantErr: false},
		{name: "actual under limit", check: g.CheckActual, size: 1023, wantErr: false},
		{name: "actual at limit", check: g.CheckActual, size: 1024, wantErr: false},
		{name: "actual over limit", check: g.CheckActual, size: 1025, wantErr: true},
		{name: "actual empty", check: g.CheckActual, size: 0, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.check(tt.size)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrPayloadTooLarge)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSizeGuard_MaxBytes(t *testing.T) {
	assert.Equal(t, int64(1048576), NewSizeGuard(1048576).MaxBytes())
}
